package main

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"scicontent/pkg/config"
)

// knownSecrets are the names the application looks up.
//
//nolint:gochecknoglobals // read-only list
var knownSecrets = []string{
	config.EnvGoogleAPIKey,
	config.EnvAnthropicAPIKey,
	config.EnvOpenAIAPIKey,
	config.EnvOllamaHost,
	config.EnvGoogleSearchAPIKey,
	config.EnvGoogleSearchCX,
	config.EnvBraveSearchAPIKey,
}

func newSecretsCommand() *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage API keys in the encrypted secrets file",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store a secret (value is read without echo)",
				ArgsUsage: "<name>",
				Action:    setSecret,
			},
			{
				Name:   "list",
				Usage:  "List secret names and where each is resolved from",
				Action: listSecrets,
			},
		},
	}
}

func setSecret(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one secret name")
	}
	name := strings.TrimSpace(cmd.Args().First())
	if name == "" {
		return fmt.Errorf("secret name must not be empty")
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	dataDir := a.cfg.Storage.DataDir

	var secrets *config.Secrets
	var password string
	if config.SecretsFileExists(dataDir) {
		if password, err = secretsPassword(false); err != nil {
			return err
		}
		if secrets, err = config.LoadSecrets(dataDir, password); err != nil {
			return fmt.Errorf("failed to decrypt secrets: %w", err)
		}
	} else {
		if password, err = secretsPassword(true); err != nil {
			return err
		}
		secrets = config.NewSecrets(nil)
	}

	value, err := readSecret(fmt.Sprintf("Value for %s: ", name))
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("secret value must not be empty")
	}
	secrets.Set(name, value)
	if err := secrets.Save(dataDir, password); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout(cmd), "✅ Stored %s\n", name)
	return err
}

func listSecrets(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	secrets, err := a.loadSecrets()
	if err != nil {
		return err
	}

	stored := map[string]bool{}
	for _, name := range secrets.Names() {
		stored[name] = true
	}
	names := append([]string(nil), secrets.Names()...)
	for _, name := range knownSecrets {
		if !stored[name] {
			names = append(names, name)
		}
	}

	w := stdout(cmd)
	for _, name := range names {
		source := "not set"
		switch {
		case stored[name]:
			source = "secrets file"
		default:
			if _, err := secrets.Get(name); err == nil {
				source = "environment"
			}
		}
		fmt.Fprintf(w, "%-24s %s\n", name, source)
	}

	status := config.DetectSearchAPIs(a.cfg.Search, secrets)
	fmt.Fprintf(w, "\nWeb search provider: %s\n", status.Provider)
	return nil
}
