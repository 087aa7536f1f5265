package profile

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// knownGoals are the content goals the prompts know how to serve.
//
//nolint:gochecknoglobals // read-only lookup table
var knownGoals = map[string]bool{
	"opportunities":      true,
	"credibility":        true,
	"visibility":         true,
	"networking":         true,
	"thought-leadership": true,
	"education":          true,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Report lists what is wrong with a profile. Errors make it unusable; warnings
// point at leftovers from the default profile and likely typos.
type Report struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the profile has no errors.
func (r *Report) Valid() bool { return len(r.Errors) == 0 }

// Err returns the errors joined into one error, or nil.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("invalid profile: %s", strings.Join(r.Errors, "; "))
}

// Validate checks the profile's fields.
func (p *Profile) Validate() *Report {
	report := &Report{}

	if err := structValidator().Struct(p); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fe := range validationErrors {
				report.Errors = append(report.Errors, describe(fe))
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	if strings.TrimSpace(p.Name) == "" || p.Name == placeholderName {
		report.Warnings = append(report.Warnings, "name is still the placeholder; set your name")
	}
	if strings.Contains(p.GitHubUsername, "/") {
		report.Warnings = append(report.Warnings, fmt.Sprintf("github_username %q looks like a URL or path; use the bare username", p.GitHubUsername))
	}
	for _, goal := range p.ContentGoals {
		if !knownGoals[goal] {
			report.Warnings = append(report.Warnings, fmt.Sprintf("unknown content goal %q", goal))
		}
	}
	return report
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must not be empty", field)
	case "required":
		return fmt.Sprintf("%s must not contain blank entries", field)
	case "url":
		return fmt.Sprintf("%s is not a valid URL: %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
