package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"scicontent/pkg/profile"
)

func newProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage the professional profile that personalizes content",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing profile"},
				},
				Action: initProfile,
			},
			{
				Name:   "show",
				Usage:  "Print the active profile",
				Action: showProfile,
			},
			{
				Name:   "validate",
				Usage:  "Check the profile for errors and warnings",
				Action: validateProfile,
			},
			{
				Name:   "edit",
				Usage:  "Open the profile in $VISUAL or $EDITOR, then validate it",
				Action: editProfile,
			},
		},
	}
}

func initProfile(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	path := a.cfg.ProfilePath()
	w := stdout(cmd)
	if profile.Exists(path) && !cmd.Bool("force") {
		fmt.Fprintf(w, "⚠️  Profile already exists at %s\n", path)
		fmt.Fprintln(w, "Edit it with 'scicontent profile edit', or pass --force to overwrite.")
		return nil
	}
	if err := profile.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ Created default profile at %s\n", path)
	fmt.Fprintln(w, "👉 Edit it with your own details before generating content.")
	return nil
}

func showProfile(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	path := a.cfg.ProfilePath()
	prof, err := profile.Load(path)
	if err != nil {
		return err
	}
	w := stdout(cmd)
	if !profile.Exists(path) {
		fmt.Fprintf(w, "# default profile (no file at %s)\n", path)
	}
	data, err := yaml.Marshal(prof)
	if err != nil {
		return fmt.Errorf("failed to render profile: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// printReport writes a validation report and returns an exit error when it has errors.
func printReport(cmd *cli.Command, report *profile.Report) error {
	w := stdout(cmd)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "❌ %s\n", e)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warning)
	}
	if !report.Valid() {
		return cli.Exit(fmt.Sprintf("profile has %d error(s)", len(report.Errors)), 1)
	}
	fmt.Fprintln(w, "✅ Profile is valid!")
	return nil
}

func validateProfile(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	prof, err := profile.Load(a.cfg.ProfilePath())
	if err != nil {
		return err
	}
	return printReport(cmd, prof.Validate())
}

func editorCommand() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "nano"
}

func editProfile(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	path := a.cfg.ProfilePath()
	if !profile.Exists(path) {
		return fmt.Errorf("profile not found at %s (run 'scicontent profile init')", path)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	editor := editorCommand()
	fmt.Fprintf(os.Stderr, "📝 Opening %s in %s...\n", path, editor)
	// #nosec G204 -- the editor comes from the user's own environment.
	c := exec.CommandContext(ctx, editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("editor %q failed: %w (set EDITOR to your preferred editor)", editor, err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	w := stdout(cmd)
	if string(before) == string(after) {
		fmt.Fprintln(w, "📝 No changes made.")
		return nil
	}
	fmt.Fprintln(w, "✅ Profile updated! Validating...")

	prof, err := profile.Load(path)
	if err != nil {
		return err
	}
	return printReport(cmd, prof.Validate())
}
