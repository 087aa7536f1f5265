package pipeline

// Stage names.
const (
	StageResearch = "ResearchAgent"
	StageStrategy = "StrategyAgent"
	StageContent  = "ContentGeneratorAgent"
	StageLinkedIn = "LinkedInOptimizationAgent"
	StageReview   = "ReviewAgent"
)

// State keys written by the default stages.
const (
	KeyResearchFindings  = "research_findings"
	KeyContentStrategy   = "content_strategy"
	KeyGeneratedContent  = "generated_content"
	KeyOptimizedLinkedIn = "optimized_linkedin"
	KeyFinalContent      = "final_content"
)

// Stage is one model call of the pipeline: a prompt template, the state keys it
// reads, the key it writes and the tools it may call. Stages are immutable;
// accessors return copies.
type Stage struct {
	name     string
	template string
	inputs   []string
	output   string
	tools    []string
}

// NewStage defines a stage. Slices are copied.
func NewStage(name, template string, inputs []string, output string, tools []string) Stage {
	return Stage{
		name:     name,
		template: template,
		inputs:   append([]string(nil), inputs...),
		output:   output,
		tools:    append([]string(nil), tools...),
	}
}

// Name returns the stage name.
func (s Stage) Name() string { return s.name }

// Template returns the unresolved prompt template.
func (s Stage) Template() string { return s.template }

// Inputs returns the state keys the stage requires, in declaration order.
func (s Stage) Inputs() []string { return append([]string(nil), s.inputs...) }

// Output returns the state key the stage writes.
func (s Stage) Output() string { return s.output }

// Tools returns the stage's tool allowlist.
func (s Stage) Tools() []string { return append([]string(nil), s.tools...) }
