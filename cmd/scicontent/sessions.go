package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"scicontent/pkg/eventlog"
	"scicontent/pkg/persistence"
	"scicontent/pkg/utils"
)

func newSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List, inspect and delete stored sessions",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List sessions, most recently updated first",
				Action: withStore(listSessions),
			},
			{
				Name:      "show",
				Usage:     "Show a session's transcript and final state",
				ArgsUsage: "<session-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "Print whole messages instead of previews"},
				},
				Action: withStore(showSession),
			},
			{
				Name:      "events",
				Usage:     "Show the stage events logged for a session",
				ArgsUsage: "<session-id>",
				Action:    sessionEvents,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session and its transcript",
				ArgsUsage: "<session-id>",
				Action:    withStore(deleteSession),
			},
		},
	}
}

type storeAction func(ctx context.Context, cmd *cli.Command, store *persistence.Store) error

func withStore(action storeAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		store, err := persistence.Open(ctx, a.cfg.Storage.DBPath, persistence.WithAppName(a.cfg.AppName))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return action(ctx, cmd, store)
	}
}

func sessionArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one session id")
	}
	return cmd.Args().First(), nil
}

func listSessions(ctx context.Context, cmd *cli.Command, store *persistence.Store) error {
	summaries, err := store.List(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout(cmd), persistence.FormatSummaries(summaries))
	return err
}

const previewRunes = 200

func showSession(ctx context.Context, cmd *cli.Command, store *persistence.Store) error {
	id, err := sessionArg(cmd)
	if err != nil {
		return err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	fmt.Fprintf(w, "Session:  %s\n", sess.ID)
	fmt.Fprintf(w, "User:     %s\n", sess.UserID)
	fmt.Fprintf(w, "Topic:    %s\n", sess.Topic)
	fmt.Fprintf(w, "Status:   %s\n", sess.Status)
	fmt.Fprintf(w, "Created:  %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated:  %s\n", sess.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Messages: %d\n\n", len(sess.Messages))

	for i, m := range sess.Messages {
		content := m.Content
		if !cmd.Bool("full") {
			content = utils.Truncate(content, previewRunes)
		}
		label := m.Role
		if m.Stage != "" {
			label += " · " + m.Stage
		}
		fmt.Fprintf(w, "[%d] %s (%s)\n%s\n\n", i+1, label, m.Timestamp.Local().Format("15:04:05"), content)
	}

	if len(sess.State) > 0 {
		var state map[string]string
		if err := json.Unmarshal(sess.State, &state); err == nil {
			fmt.Fprintf(w, "State keys: %d\n", len(state))
		}
	}
	return nil
}

func deleteSession(ctx context.Context, cmd *cli.Command, store *persistence.Store) error {
	id, err := sessionArg(cmd)
	if err != nil {
		return err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout(cmd), "✅ Deleted session '%s' and %d message(s)\n", id, len(sess.Messages))
	return err
}

func sessionEvents(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	id, err := sessionArg(cmd)
	if err != nil {
		return err
	}
	events, err := eventlog.SessionEvents(a.cfg.Storage.LogDir, id)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	if len(events) == 0 {
		_, err = fmt.Fprintf(w, "No events logged for session '%s'.\n", id)
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-16s [%d/%d] %s", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.Index, ev.Total, ev.Stage)
		switch ev.Kind {
		case eventlog.KindCompleted:
			line += fmt.Sprintf(" -> %s (%d chars, %dms)", ev.Output, ev.OutputChars, ev.DurationMs)
		case eventlog.KindFailed:
			line += fmt.Sprintf(" [%s] %s", ev.Category, ev.Error)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
