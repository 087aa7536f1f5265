package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"
	"golang.org/x/term"

	"scicontent/pkg/config"
	"scicontent/pkg/logx"
)

// app is the loaded configuration shared by every command.
type app struct {
	cfg    *config.Config
	logger *logx.Logger
}

func loadApp(cmd *cli.Command) (*app, error) {
	root := cmd.Root()
	if root.Bool("debug") {
		logx.SetDebugConfig(true, false, "")
	}
	cfg, err := config.LoadConfig(root.String("config"))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logx.NewLogger("scicontent")}, nil
}

// stdout is where command results go; logs go to stderr.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret reads one hidden line from the terminal, or a plain line from a pipe.
func readSecret(prompt string) (string, error) {
	if !isTerminal() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	defer clear(value)
	return string(value), nil
}

// secretsPassword returns the secrets file password from the environment or a
// prompt. A new file asks for confirmation.
func secretsPassword(confirm bool) (string, error) {
	if pw := os.Getenv(config.EnvSecretsPassword); pw != "" {
		return pw, nil
	}
	if !isTerminal() {
		return "", fmt.Errorf("secrets file is encrypted: set %s or run interactively", config.EnvSecretsPassword)
	}

	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		first, err := readSecret("Secrets password: ")
		if err != nil {
			return "", err
		}
		if !confirm {
			return first, nil
		}
		second, err := readSecret("Confirm password: ")
		if err != nil {
			return "", err
		}
		if first == second && first != "" {
			return first, nil
		}
		fmt.Fprintln(os.Stderr, "❌ Passwords do not match or are empty. Please try again.")
	}
	return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
}

// loadSecrets decrypts the secrets file when it exists. Without one, secrets
// come from the environment only.
func (a *app) loadSecrets() (*config.Secrets, error) {
	dataDir := a.cfg.Storage.DataDir
	if !config.SecretsFileExists(dataDir) {
		return config.NewSecrets(nil), nil
	}
	password, err := secretsPassword(false)
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets(dataDir, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	return secrets, nil
}
