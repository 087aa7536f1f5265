package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"scicontent/pkg/tools"
)

func newToolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "Inspect and call the research tools directly",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the available tools",
				Action: withTools(listTools),
			},
			{
				Name:      "call",
				Usage:     "Invoke one tool and print its result envelope",
				ArgsUsage: "<tool-name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "args", Usage: "Tool arguments as a JSON object", Value: "{}"},
				},
				Action: withTools(callTool),
			},
		},
	}
}

type toolsAction func(ctx context.Context, cmd *cli.Command, reg *tools.Registry) error

func withTools(action toolsAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		secrets, err := a.loadSecrets()
		if err != nil {
			return err
		}
		reg, err := tools.NewRegistryFromConfig(a.cfg, secrets)
		if err != nil {
			return err
		}
		return action(ctx, cmd, reg)
	}
}

func listTools(_ context.Context, cmd *cli.Command, reg *tools.Registry) error {
	w := stdout(cmd)
	for _, def := range reg.Definitions() {
		fmt.Fprintf(w, "%-26s %s\n", def.Name, firstLine(def.Description))
	}
	return nil
}

func callTool(ctx context.Context, cmd *cli.Command, reg *tools.Registry) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one tool name")
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(cmd.String("args")), &args); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	res := reg.Invoke(ctx, cmd.Args().First(), args)
	_, err := fmt.Fprintln(stdout(cmd), res.Content)
	if err != nil {
		return err
	}
	if !res.Envelope.Success {
		return cli.Exit("", 1)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
