// Command scicontent turns a research topic into blog, LinkedIn and Twitter
// drafts by running a five-stage LLM pipeline, and manages the sessions,
// profile and secrets that pipeline uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"scicontent/pkg/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "scicontent",
		Usage:                 "Generate research-backed content for blogs, LinkedIn and Twitter",
		Version:               version.Version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.json (default ~/.scicontent/config.json)",
				Sources: cli.EnvVars("SCICONTENT_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Commands: []*cli.Command{
			newGenerateCommand(),
			newSessionsCommand(),
			newProfileCommand(),
			newSecretsCommand(),
			newToolsCommand(),
			newVersionCommand(),
		},
	}
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(stdout(cmd), version.String())
			return err
		},
	}
}
