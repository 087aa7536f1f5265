package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"scicontent/pkg/agent"
	llmmetrics "scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/config"
	"scicontent/pkg/eventlog"
	"scicontent/pkg/generator"
	"scicontent/pkg/metrics"
	"scicontent/pkg/persistence"
	"scicontent/pkg/pipeline"
	"scicontent/pkg/profile"
	"scicontent/pkg/redact"
	"scicontent/pkg/tools"
	"scicontent/pkg/tracing"
)

const defaultTopic = "Large Language Models and AI Agents"

// newModelClient builds the wrapped model client; tests swap in a scripted one.
var newModelClient = agent.NewClient

func newGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Run the content pipeline for a topic",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "Topic to generate content about", Value: defaultTopic},
			&cli.StringFlag{Name: "session-id", Usage: "Session ID to use or resume"},
			&cli.BoolFlag{Name: "resume", Usage: "Require --session-id to name an existing session"},
			&cli.StringSliceFlag{Name: "platforms", Usage: "Target platforms", Value: append([]string(nil), generator.DefaultPlatforms...)},
			&cli.StringFlag{Name: "tone", Usage: "Content tone (defaults to the profile tone)"},
			&cli.StringFlag{Name: "audience", Usage: "Target audience", Value: generator.DefaultAudience},
			&cli.StringFlag{Name: "output-dir", Usage: "Directory for the content file (default from config)"},
			&cli.BoolFlag{Name: "no-save", Usage: "Do not write the content file"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address during the run"},
			&cli.StringFlag{Name: "metrics-out", Usage: "Write a Prometheus text snapshot to this file after the run"},
			&cli.BoolFlag{Name: "trace", Usage: "Log OpenTelemetry spans for the run, its stages and tool calls"},
			&cli.BoolFlag{Name: "no-event-log", Usage: "Do not append stage events to the JSONL event log"},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	secrets, err := a.loadSecrets()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sessionUsage := llmmetrics.NewSessionRecorder()
	recorder := llmmetrics.Multi(llmmetrics.NewPrometheusRecorder(reg), sessionUsage)

	metricsAddr := firstNonEmpty(cmd.String("metrics-addr"), listenAddr(a))
	if metricsAddr != "" {
		srv := metrics.NewServer(metricsAddr, reg)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("%v", err)
			}
		}()
	}

	var tracer trace.Tracer
	if cmd.Bool("trace") {
		tp, err := tracing.NewProvider(a.cfg.AppName, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()
		tracer = tp.Tracer()
	}

	client, err := newModelClient(ctx, a.cfg, secrets, recorder, a.logger)
	if err != nil {
		return err
	}
	toolReg, err := tools.NewRegistryFromConfig(a.cfg, secrets)
	if err != nil {
		return err
	}
	stages, err := pipeline.DefaultRegistry()
	if err != nil {
		return err
	}
	observers := []pipeline.Observer{pipeline.LogObserver{Logger: a.logger}}
	if !cmd.Bool("no-event-log") {
		events, err := eventlog.NewWriter(a.cfg.Storage.LogDir, a.logger)
		if err != nil {
			a.logger.Warn("Event log disabled: %v", err)
		} else {
			defer func() { _ = events.Close() }()
			observers = append(observers, events)
		}
	}

	runner, err := pipeline.NewRunner(client, stages, toolReg,
		pipeline.WithOptions(pipeline.Options{
			MaxToolIterations: a.cfg.Tools.MaxToolIterations,
			MaxTokens:         a.cfg.Model.MaxTokens,
			Temperature:       float32(a.cfg.Model.Temperature),
		}),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(recorder),
		pipeline.WithTracing(tracer),
		pipeline.WithObservers(observers...),
	)
	if err != nil {
		return err
	}

	store, err := persistence.Open(ctx, a.cfg.Storage.DBPath, persistence.WithAppName(a.cfg.AppName))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	prof, err := loadValidProfile(a)
	if err != nil {
		return err
	}

	svc, err := generator.New(runner, store, prof,
		generator.WithLogger(a.logger),
		generator.WithFinalKey(stages.FinalKey()),
		generator.WithScanner(secretScanner(secrets)),
	)
	if err != nil {
		return err
	}

	req := generator.Request{
		Topic:     cmd.String("topic"),
		SessionID: cmd.String("session-id"),
		Resume:    cmd.Bool("resume"),
		Platforms: cmd.StringSlice("platforms"),
		Tone:      cmd.String("tone"),
		Audience:  cmd.String("audience"),
		OutputDir: firstNonEmpty(cmd.String("output-dir"), a.cfg.Storage.OutputDir),
		NoSave:    cmd.Bool("no-save"),
	}
	a.logger.Info("📝 Topic: %s (model %s)", req.Topic, client.GetModelName())

	out, runErr := svc.Generate(ctx, req)
	reportUsage(a, reg, sessionUsage, out)
	if path := firstNonEmpty(cmd.String("metrics-out"), a.cfg.Metrics.SnapshotPath); path != "" {
		if err := metrics.WriteSnapshot(reg, path); err != nil {
			a.logger.Warn("%v", err)
		}
	}

	if runErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			return cli.Exit(fmt.Sprintf("❌ Stage %d (%s) failed [%s]: %v",
				stageErr.Index, stageErr.Stage, stageErr.Category, stageErr.Cause), 1)
		}
		return runErr
	}

	w := stdout(cmd)
	fmt.Fprintf(w, "\n📄 GENERATED CONTENT (session %s):\n\n%s\n", out.SessionID, out.Content)
	if out.OutputPath != "" {
		fmt.Fprintf(w, "\n💾 Content saved to: %s\n", out.OutputPath)
	}
	return nil
}

// secretScanner masks credential shapes plus the configured key values, so
// nothing a tool or model echoes back reaches the session store in clear.
func secretScanner(secrets config.SecretSource) *redact.PatternScanner {
	var literals []string
	for _, name := range knownSecrets {
		if name == config.EnvOllamaHost {
			continue
		}
		if value, err := secrets.Get(name); err == nil && value != "" {
			literals = append(literals, value)
		}
	}
	return redact.NewPatternScanner(2*time.Second, literals...)
}

func loadValidProfile(a *app) (*profile.Profile, error) {
	path := a.cfg.ProfilePath()
	if !profile.Exists(path) {
		a.logger.Info("👤 Using default profile (no custom profile at %s)", path)
	}
	prof, err := profile.Load(path)
	if err != nil {
		return nil, err
	}
	report := prof.Validate()
	for _, w := range report.Warnings {
		a.logger.Warn("Profile: %s", w)
	}
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("%w (fix it with 'scicontent profile edit')", err)
	}
	return prof, nil
}

func reportUsage(a *app, g prometheus.Gatherer, sessions *llmmetrics.SessionRecorder, out *generator.Outcome) {
	if summary, err := metrics.Summarize(g); err == nil {
		a.logger.Info("Run usage:\n%s", summary.Format())
	}
	if out == nil {
		return
	}
	if usage := sessions.Get(out.SessionID); usage != nil {
		a.logger.Info("Session %s: %d requests, %d tokens", out.SessionID, usage.RequestCount, usage.TotalTokens)
	}
}

func listenAddr(a *app) string {
	if a.cfg.Metrics.Enabled {
		return a.cfg.Metrics.ListenAddr
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
