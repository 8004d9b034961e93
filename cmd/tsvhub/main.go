package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/tsvhub/internal/api"
	"github.com/MikeSquared-Agency/tsvhub/internal/archive"
	"github.com/MikeSquared-Agency/tsvhub/internal/config"
	"github.com/MikeSquared-Agency/tsvhub/internal/hermes"
	"github.com/MikeSquared-Agency/tsvhub/internal/hub"
	"github.com/MikeSquared-Agency/tsvhub/internal/metrics"
	"github.com/MikeSquared-Agency/tsvhub/internal/pipeline"
	"github.com/MikeSquared-Agency/tsvhub/internal/slack"
	"github.com/MikeSquared-Agency/tsvhub/internal/store"
)

const usage = `usage: tsvhub [push|convert|serve] [path]

  push [path]     load, transform and publish to the Hub (default)
  convert [path]  load and transform, write JSONL to stdout
  serve           run the HTTP API
`

func main() {
	cfg := config.Load()
	cmd, input := parseArgs(os.Args[1:], cfg.Input)

	// convert owns stdout for its records.
	logOut := os.Stdout
	if cmd == "convert" {
		logOut = os.Stderr
	}
	setupLogging(cfg.LogLevel, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var err error
	switch cmd {
	case "push":
		err = runPush(ctx, cfg, m, input)
	case "convert":
		err = runConvert(cfg, m, input)
	case "serve":
		err = runServe(ctx, cfg, m, reg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("tsvhub failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, defaultInput string) (cmd, input string) {
	cmd, input = "push", defaultInput
	if len(args) > 0 {
		switch args[0] {
		case "push", "convert", "serve":
			cmd, args = args[0], args[1:]
		case "-h", "--help", "help":
			return "help", ""
		}
	}
	if len(args) > 0 {
		input = args[0]
	}
	return cmd, input
}

func runPush(ctx context.Context, cfg config.Config, m *metrics.Metrics, input string) error {
	logger := slog.Default()

	if cfg.HFToken == "" {
		slog.Warn("HF_TOKEN not set — the Hub will reject the upload unless it allows anonymous writes")
	}
	client := hub.NewClient(cfg.HFEndpoint, cfg.HFToken)
	opts := []pipeline.Option{pipeline.WithDelimiter(cfg.Delimiter)}

	// Everything below is optional: a missing setting just disables that channel.
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Warn("database unavailable — running without publish ledger", "error", err)
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				slog.Warn("ledger schema setup failed", "error", err)
			} else {
				opts = append(opts, pipeline.WithLedger(db))
				slog.Info("database connected")
			}
		}
	}

	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			slog.Warn("NATS unavailable — running without announcements", "error", err)
		} else {
			defer hermesClient.Close()
			opts = append(opts, pipeline.WithAnnouncer(hermesClient))
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		opts = append(opts, pipeline.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)))
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	if cfg.ArchiveBucket != "" {
		s3Client, err := archive.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			slog.Warn("S3 unavailable — running without archive", "error", err)
		} else {
			opts = append(opts, pipeline.WithArchiver(archive.New(s3Client, cfg.ArchiveBucket, cfg.ArchivePrefix, logger)))
			slog.Info("archive ready", "bucket", cfg.ArchiveBucket)
		}
	}

	p := pipeline.New(hub.NewPublisher(client, logger), m, logger, opts...)

	slog.Info("publishing dataset", "input", input, "repo", hub.RepoID)
	rep, err := p.Run(ctx, input)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Publish Summary ===\n")
	fmt.Printf("Run: %s\n", rep.RunID)
	fmt.Printf("Input: %s\n", rep.Input)
	fmt.Printf("Rows loaded: %d\n", rep.Rows)
	fmt.Printf("Records published: %d\n", rep.Records)
	fmt.Printf("Repository: %s\n", hub.RepoID)
	if rep.CommitURL != "" {
		fmt.Printf("Commit: %s\n", rep.CommitURL)
	}
	if rep.ArchiveKey != "" {
		fmt.Printf("Archive: s3://%s/%s\n", cfg.ArchiveBucket, rep.ArchiveKey)
	}
	return nil
}

func runConvert(cfg config.Config, m *metrics.Metrics, input string) error {
	p := pipeline.New(nil, m, slog.Default(), pipeline.WithDelimiter(cfg.Delimiter))
	n, err := p.Convert(input, os.Stdout)
	if err != nil {
		return err
	}
	slog.Info("converted", "input", input, "records", n)
	return nil
}

func runServe(ctx context.Context, cfg config.Config, m *metrics.Metrics, reg *prometheus.Registry) error {
	srv := api.NewServer(cfg.Port, cfg.Delimiter, m, reg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("tsvhub ready", "port", cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("tsvhub stopped")
	return nil
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
