package pipeline

import (
	"embed"
	"fmt"

	"scicontent/pkg/tools"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Registry holds the ordered stage definitions of a pipeline.
type Registry struct {
	stages []Stage
}

// NewRegistry validates and stores stages in execution order.
func NewRegistry(stages ...Stage) (*Registry, error) {
	r := &Registry{stages: append([]Stage(nil), stages...)}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that stage names and output keys are unique and that every
// stage reads only keys written by a strictly earlier stage.
func (r *Registry) Validate() error {
	if len(r.stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	names := make(map[string]bool, len(r.stages))
	produced := make(map[string]bool, len(r.stages))
	for i, s := range r.stages {
		if s.name == "" {
			return fmt.Errorf("stage %d has no name", i+1)
		}
		if s.output == "" {
			return fmt.Errorf("stage %s has no output key", s.name)
		}
		if names[s.name] {
			return fmt.Errorf("duplicate stage name %q", s.name)
		}
		for _, in := range s.inputs {
			if !produced[in] {
				return fmt.Errorf("stage %s reads %q, which no earlier stage writes", s.name, in)
			}
		}
		if produced[s.output] {
			return fmt.Errorf("stage %s writes %q, which an earlier stage already writes", s.name, s.output)
		}
		names[s.name] = true
		produced[s.output] = true
	}
	return nil
}

// ValidateTools checks that every tool a stage names is registered.
func (r *Registry) ValidateTools(reg *tools.Registry) error {
	for _, s := range r.stages {
		for _, name := range s.tools {
			if _, err := reg.Get(name); err != nil {
				return fmt.Errorf("stage %s: %w", s.name, err)
			}
		}
	}
	return nil
}

// Stages returns the stages in execution order.
func (r *Registry) Stages() []Stage {
	return append([]Stage(nil), r.stages...)
}

// Len returns the number of stages.
func (r *Registry) Len() int { return len(r.stages) }

// Stage returns the stage with the given name.
func (r *Registry) Stage(name string) (Stage, bool) {
	for _, s := range r.stages {
		if s.name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// FinalKey returns the output key of the last stage, the run's delivered output.
func (r *Registry) FinalKey() string {
	return r.stages[len(r.stages)-1].output
}

// DefaultRegistry returns the five content stages with their embedded prompts.
func DefaultRegistry() (*Registry, error) {
	defs := []struct {
		name   string
		file   string
		inputs []string
		output string
		tools  []string
	}{
		{
			name:   StageResearch,
			file:   "research.md",
			output: KeyResearchFindings,
			tools:  []string{tools.ToolSearchPapers, tools.ToolSearchWeb, tools.ToolExtractKeyFindings},
		},
		{
			name:   StageStrategy,
			file:   "strategy.md",
			inputs: []string{KeyResearchFindings},
			output: KeyContentStrategy,
		},
		{
			name:   StageContent,
			file:   "content.md",
			inputs: []string{KeyResearchFindings, KeyContentStrategy},
			output: KeyGeneratedContent,
			tools:  []string{tools.ToolFormatForPlatform},
		},
		{
			name:   StageLinkedIn,
			file:   "linkedin.md",
			inputs: []string{KeyResearchFindings, KeyContentStrategy, KeyGeneratedContent},
			output: KeyOptimizedLinkedIn,
			tools:  []string{tools.ToolGenerateSEOKeywords, tools.ToolCreateEngagementHooks, tools.ToolSearchIndustryTrends},
		},
		{
			name:   StageReview,
			file:   "review.md",
			inputs: []string{KeyResearchFindings, KeyGeneratedContent, KeyOptimizedLinkedIn},
			output: KeyFinalContent,
			tools:  []string{tools.ToolGenerateCitations, tools.ToolAnalyzeContent},
		},
	}

	stages := make([]Stage, 0, len(defs))
	for _, d := range defs {
		tmpl, err := promptFS.ReadFile("prompts/" + d.file)
		if err != nil {
			return nil, fmt.Errorf("load prompt for %s: %w", d.name, err)
		}
		stages = append(stages, NewStage(d.name, string(tmpl), d.inputs, d.output, d.tools))
	}
	return NewRegistry(stages...)
}
