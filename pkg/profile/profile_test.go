package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingOrEmptyFileYieldsDefault(t *testing.T) {
	dir := t.TempDir()

	p, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	p, err = Load(empty)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadKeepsDefaultsForAbsentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Ada\ntarget_role: ML Engineer\nunknown_key: ignored\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ML Engineer", p.TargetRole)
	assert.Equal(t, Default().ExpertiseAreas, p.ExpertiseAreas)
}

func TestLoadAcceptsRegionKey(t *testing.T) {
	dir := t.TempDir()

	legacy := filepath.Join(dir, "legacy.yaml")
	require.NoError(t, os.WriteFile(legacy, []byte("name: Ada\nregion: Asia\n"), 0o600))
	p, err := Load(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Asia", p.GeographicFocus)

	both := filepath.Join(dir, "both.yaml")
	require.NoError(t, os.WriteFile(both, []byte("geographic_focus: US\nregion: Asia\n"), 0o600))
	p, err = Load(both)
	require.NoError(t, err)
	assert.Equal(t, "US", p.GeographicFocus, "geographic_focus wins over region")

	p, err = Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().GeographicFocus, p.GeographicFocus)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTripAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")
	p := Default()
	p.Name = "Grace"
	p.GitHubUsername = "grace"
	require.NoError(t, p.Save(path))
	assert.True(t, Exists(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestSummary(t *testing.T) {
	p := Default()
	summary := p.Summary()
	assert.True(t, strings.HasPrefix(summary, "**Professional Profile**:"))
	assert.Contains(t, summary, "- Role: AI Consultant")
	assert.Contains(t, summary, "- Key Skills: Python, PyTorch, TensorFlow, Scikit-learn, MLflow")
	assert.NotContains(t, summary, "Notable Projects", "placeholder project is not advertised")
	assert.NotContains(t, summary, "GitHub")

	p.GitHubUsername = "ada"
	p.PrimarySkills = append(p.PrimarySkills, "JAX")
	p.Projects = []Project{
		{Name: "p1", Description: "d1", Technologies: "t1"},
		{Name: "p2"}, {Name: "p3"}, {Name: "p4"},
	}
	summary = p.Summary()
	assert.Contains(t, summary, "- GitHub: github.com/ada")
	assert.NotContains(t, summary, "JAX", "only five skills are listed")
	assert.Contains(t, summary, "- p1: d1 (t1)")
	assert.NotContains(t, summary, "p4")
}

func TestVars(t *testing.T) {
	vars := Default().Vars()
	assert.Equal(t, "AI Consultant", vars["target_role"])
	assert.Equal(t, ToneConversational, vars["content_tone"])
	assert.Equal(t, "Machine Learning, Artificial Intelligence, Deep Learning", vars["expertise_areas"])
	assert.Equal(t, Default().Summary(), vars["profile_summary"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Profile)
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:         "default only warns about the placeholder name",
			mutate:       func(*Profile) {},
			wantWarnings: []string{"placeholder"},
		},
		{
			name:       "empty expertise",
			mutate:     func(p *Profile) { p.Name = "Ada"; p.ExpertiseAreas = nil },
			wantErrors: []string{"ExpertiseAreas must not be empty"},
		},
		{
			name:       "bad url",
			mutate:     func(p *Profile) { p.Name = "Ada"; p.LinkedInURL = "not a url" },
			wantErrors: []string{"LinkedInURL is not a valid URL"},
		},
		{
			name:       "bad project url",
			mutate:     func(p *Profile) { p.Name = "Ada"; p.Projects[0].URL = "::" },
			wantErrors: []string{"Projects[0].URL"},
		},
		{
			name:       "bad tone",
			mutate:     func(p *Profile) { p.Name = "Ada"; p.ContentTone = "shouty" },
			wantErrors: []string{"ContentTone must be one of"},
		},
		{
			name: "github path and unknown goal",
			mutate: func(p *Profile) {
				p.Name = "Ada"
				p.GitHubUsername = "github.com/ada"
				p.ContentGoals = []string{"visibility", "fame"}
			},
			wantWarnings: []string{"github_username", `"fame"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			report := p.Validate()

			require.Len(t, report.Errors, len(tt.wantErrors), "errors: %v", report.Errors)
			for i, want := range tt.wantErrors {
				assert.Contains(t, report.Errors[i], want)
			}
			require.Len(t, report.Warnings, len(tt.wantWarnings), "warnings: %v", report.Warnings)
			for i, want := range tt.wantWarnings {
				assert.Contains(t, report.Warnings[i], want)
			}
			assert.Equal(t, len(tt.wantErrors) == 0, report.Valid())
			assert.Equal(t, report.Valid(), report.Err() == nil)
		})
	}
}
