// Package profile holds the user's professional profile: the YAML file that
// personalizes generated content, its defaults, validation and the context
// variables it contributes to stage prompts.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Content tones accepted by Validate.
const (
	ToneFormal         = "professional-formal"
	ToneConversational = "professional-conversational"
	ToneTechnical      = "technical"
	ToneCasual         = "casual"
)

// placeholderName is the name shipped in the default profile.
const placeholderName = "Your Name"

// placeholderProject is the project name shipped in the default profile.
const placeholderProject = "Project Name"

// Project is a notable project the content may mention.
type Project struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Technologies string `yaml:"technologies"`
	URL          string `yaml:"url" validate:"omitempty,url"`
}

// Profile is the user's professional profile.
//
//nolint:govet // field order follows the YAML file layout.
type Profile struct {
	// Professional identity
	Name           string   `yaml:"name"`
	TargetRole     string   `yaml:"target_role"`
	ExpertiseAreas []string `yaml:"expertise_areas" validate:"min=1,dive,required"`

	// Goals and market
	ContentGoals     []string `yaml:"content_goals"`
	GeographicFocus  string   `yaml:"geographic_focus"`
	Languages        []string `yaml:"languages"`
	TargetIndustries []string `yaml:"target_industries"`

	// Portfolio
	GitHubUsername string    `yaml:"github_username"`
	LinkedInURL    string    `yaml:"linkedin_url" validate:"omitempty,url"`
	PortfolioURL   string    `yaml:"portfolio_url" validate:"omitempty,url"`
	KaggleUsername string    `yaml:"kaggle_username"`
	Projects       []Project `yaml:"notable_projects" validate:"dive"`
	PrimarySkills  []string  `yaml:"primary_skills"`

	// Content preferences
	ContentTone      string `yaml:"content_tone" validate:"oneof=professional-formal professional-conversational technical casual"`
	UseEmojis        bool   `yaml:"use_emojis"`
	PostingFrequency string `yaml:"posting_frequency"`

	// Positioning
	UniqueValueProposition string   `yaml:"unique_value_proposition"`
	KeyDifferentiators     []string `yaml:"key_differentiators"`
}

// Default returns the profile used when the user has not written one.
func Default() *Profile {
	return &Profile{
		Name:             placeholderName,
		TargetRole:       "AI Consultant",
		ExpertiseAreas:   []string{"Machine Learning", "Artificial Intelligence", "Deep Learning"},
		ContentGoals:     []string{"opportunities", "credibility", "visibility"},
		GeographicFocus:  "Europe",
		Languages:        []string{"English"},
		TargetIndustries: []string{"Technology", "Finance", "Healthcare", "Consulting"},
		Projects: []Project{{
			Name:         placeholderProject,
			Description:  "Brief description of what you built",
			Technologies: "PyTorch, FastAPI, Docker",
			URL:          "https://github.com/username/project",
		}},
		PrimarySkills:          []string{"Python", "PyTorch", "TensorFlow", "Scikit-learn", "MLflow"},
		ContentTone:            ToneConversational,
		UseEmojis:              true,
		PostingFrequency:       "2-3x per week",
		UniqueValueProposition: "I help companies turn AI research into production-ready solutions",
		KeyDifferentiators: []string{
			"Bridging research and production",
			"End-to-end AI implementation",
			"Business-focused technical expertise",
		},
	}
}

// Load reads a profile from path. A missing or empty file yields Default; fields
// absent from the file keep their default values.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return Default(), nil
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	// Profiles written by earlier versions call the geographic focus "region".
	var legacy struct {
		GeographicFocus *string `yaml:"geographic_focus"`
		Region          string  `yaml:"region"`
	}
	if err := yaml.Unmarshal(data, &legacy); err == nil && legacy.GeographicFocus == nil && legacy.Region != "" {
		p.GeographicFocus = legacy.Region
	}
	return p, nil
}

// Exists reports whether a profile file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes the profile as YAML, readable only by the owner.
func (p *Profile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Summary renders the profile as the text block embedded in requests and prompts.
func (p *Profile) Summary() string {
	skills := p.PrimarySkills
	if len(skills) > 5 {
		skills = skills[:5]
	}

	var b strings.Builder
	b.WriteString("**Professional Profile**:\n")
	fmt.Fprintf(&b, "- Role: %s\n", p.TargetRole)
	fmt.Fprintf(&b, "- Expertise: %s\n", strings.Join(p.ExpertiseAreas, ", "))
	fmt.Fprintf(&b, "- Key Skills: %s\n", strings.Join(skills, ", "))
	fmt.Fprintf(&b, "- Region: %s\n", p.GeographicFocus)
	fmt.Fprintf(&b, "- Content Goals: %s\n", strings.Join(p.ContentGoals, ", "))
	fmt.Fprintf(&b, "- Value Proposition: %s\n", p.UniqueValueProposition)
	fmt.Fprintf(&b, "- Tone: %s\n", p.ContentTone)
	if p.GitHubUsername != "" {
		fmt.Fprintf(&b, "- GitHub: github.com/%s\n", p.GitHubUsername)
	}
	if p.LinkedInURL != "" {
		fmt.Fprintf(&b, "- LinkedIn: %s\n", p.LinkedInURL)
	}

	if len(p.Projects) > 0 && p.Projects[0].Name != placeholderProject {
		b.WriteString("\n**Notable Projects to Mention**:\n")
		for i, proj := range p.Projects {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", proj.Name, proj.Description, proj.Technologies)
		}
	}
	return b.String()
}

// Vars returns the context variables the profile contributes to stage templates.
func (p *Profile) Vars() map[string]string {
	return map[string]string{
		"profile_summary":          p.Summary(),
		"name":                     p.Name,
		"target_role":              p.TargetRole,
		"content_tone":             p.ContentTone,
		"expertise_areas":          strings.Join(p.ExpertiseAreas, ", "),
		"primary_skills":           strings.Join(p.PrimarySkills, ", "),
		"geographic_focus":         p.GeographicFocus,
		"target_industries":        strings.Join(p.TargetIndustries, ", "),
		"unique_value_proposition": p.UniqueValueProposition,
	}
}
