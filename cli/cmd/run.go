// Package cmd implements the deckhand CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/deckhand-io/deckhand/cli/config"
	"github.com/deckhand-io/deckhand/cli/tui"
	"github.com/deckhand-io/deckhand/collab"
	"github.com/deckhand-io/deckhand/metrics"
	"github.com/deckhand-io/deckhand/notify"
	redissink "github.com/deckhand-io/deckhand/notify/redis"
	"github.com/deckhand-io/deckhand/notify/telegram"
	"github.com/deckhand-io/deckhand/notify/webhook"
	"github.com/deckhand-io/deckhand/pipeline"
	"github.com/deckhand-io/deckhand/state"
	"github.com/deckhand-io/deckhand/storage"
	"github.com/deckhand-io/deckhand/types"
)

// Exit codes for deckhand run.
const (
	exitSuccess      = 0
	exitPartial      = 1
	exitFailed       = 2
	exitInvalidInput = 3
)

// RunCommand returns the run command, the only command that executes work.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a research pipeline run for a sector and region",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "sector",
				Usage:    "Industry sector to research",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "region",
				Usage:    "Geographic region to research",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID (generated when omitted)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to deckhand.yaml",
				Value:   "deckhand.yaml",
			},
			&cli.StringFlag{
				Name:  "plan",
				Usage: "Pipeline plan: thesis or networking",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Show live progress in the terminal",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), c.IsSet("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	meta := &types.RunMeta{
		RunID:     c.String("run-id"),
		Sector:    c.String("sector"),
		Region:    c.String("region"),
		CreatedAt: time.Now().UTC(),
	}
	if meta.RunID == "" {
		meta.RunID = uuid.New().String()
	}
	if err := meta.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid run request: %v", err), exitInvalidInput)
	}

	planName := c.String("plan")
	if planName == "" {
		planName = cfg.Plan
	}
	phases, ok := pipeline.PlanByName(planName, tuningFromConfig(cfg))
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown plan %q", planName), exitInvalidInput)
	}

	if cfg.Collaborator.BaseURL == "" {
		return cli.Exit("collaborator.base_url is required", exitInvalidInput)
	}
	client, err := collab.NewHTTPClient(collab.ClientConfig{
		BaseURL: cfg.Collaborator.BaseURL,
		APIKey:  cfg.Collaborator.APIKey,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("collaborator client: %v", err), exitInvalidInput)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	artifacts, backendName, err := buildStorage(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), exitInvalidInput)
	}
	defer artifacts.Close()

	states, err := buildState(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("state store: %v", err), exitInvalidInput)
	}
	defer states.Close()

	var journal *state.Journal
	if cfg.JournalDir != "" {
		journal, err = state.OpenJournal(cfg.JournalDir, meta.RunID)
		if err != nil {
			return cli.Exit(fmt.Sprintf("journal: %v", err), exitInvalidInput)
		}
		defer journal.Close()
	}

	sink, err := buildSink(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("notify: %v", err), exitInvalidInput)
	}

	var watchChan *notify.Chan
	if c.Bool("watch") {
		watchChan = notify.NewChan(64)
		sink = notify.Multi{sink, watchChan}
	}
	defer sink.Close()

	collector := metrics.NewCollector(planName, backendName, meta.RunID, meta.Sector, meta.Region)

	orch, err := pipeline.NewOrchestrator(&pipeline.Config{
		Meta:          meta,
		Phases:        phases,
		Collaborators: pipeline.Collaborators{Generator: client, Renderer: client, Reviewer: client},
		Artifacts:     artifacts,
		State:         states,
		Sink:          sink,
		Journal:       journal,
		Collector:     collector,
		TemplateRef:   cfg.TemplateRef,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		return fmt.Errorf("create orchestrator: %w", err)
	}

	var result *types.RunResult
	var execErr error
	if watchChan != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			result, execErr = orch.Execute(ctx)
			watchChan.Close()
		}()
		if watchErr := tui.RunWatch(meta, phaseNames(phases), watchChan.C); watchErr != nil {
			fmt.Fprintf(os.Stderr, "watch view failed: %v\n", watchErr)
		}
		<-done
	} else {
		result, execErr = orch.Execute(ctx)
	}
	if execErr != nil {
		return fmt.Errorf("execution failed: %w", execErr)
	}

	if !c.Bool("quiet") {
		printRunResult(result, collector.Snapshot())
	}

	return cli.Exit("", result.ExitCode())
}

// loadConfig reads the config file. A missing file is only an error when the
// user pointed at it explicitly.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return &config.Config{}, nil
		}
	}
	return config.Load(path)
}

func tuningFromConfig(cfg *config.Config) pipeline.Tuning {
	return pipeline.Tuning{
		ResearchTimeout: cfg.Pipeline.ResearchTimeout.Duration,
		RenderTimeout:   cfg.Pipeline.RenderTimeout.Duration,
		MaxAttempts:     cfg.Pipeline.MaxAttempts,
		BaseDelay:       cfg.Pipeline.BaseDelay.Duration,
		MaxDelay:        cfg.Pipeline.MaxDelay.Duration,
	}
}

// buildStorage constructs the artifact byte store from config.
func buildStorage(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	switch cfg.Storage.Backend {
	case "", "fs":
		path := cfg.Storage.Path
		if path == "" {
			path = "artifacts"
		}
		store, err := storage.NewFSStore(path)
		return store, "fs", err

	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
		return store, "s3", err

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildState constructs the run state store from config.
func buildState(cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case "", "memory":
		return state.NewMemoryStore(), nil
	case "sqlite":
		return state.NewSQLiteStore(cfg.State.Path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// buildSink constructs the configured notification adapter.
func buildSink(cfg *config.Config) (notify.Sink, error) {
	switch cfg.Notify.Type {
	case "":
		return notify.Noop{}, nil

	case "webhook":
		retries := 0
		if cfg.Notify.Retries != nil {
			retries = *cfg.Notify.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.Notify.URL,
			Headers: cfg.Notify.Headers,
			Timeout: cfg.Notify.Timeout.Duration,
			Retries: retries,
		})

	case "redis":
		retries := 0
		if cfg.Notify.Retries != nil {
			retries = *cfg.Notify.Retries
		}
		return redissink.New(redissink.Config{
			URL:     cfg.Notify.URL,
			Channel: cfg.Notify.Channel,
			Timeout: cfg.Notify.Timeout.Duration,
			Retries: retries,
		})

	case "telegram":
		return telegram.New(telegram.Config{
			Token:   cfg.Notify.Token,
			ChatID:  cfg.Notify.ChatID,
			Timeout: cfg.Notify.Timeout.Duration,
		})

	default:
		return nil, fmt.Errorf("unknown notify adapter %q", cfg.Notify.Type)
	}
}

func phaseNames(phases []types.PhaseSpec) []string {
	names := make([]string, len(phases))
	for i := range phases {
		names[i] = phases[i].Name
	}
	return names
}

// printRunResult prints a human-readable run summary to stdout.
func printRunResult(result *types.RunResult, snap metrics.Snapshot) {
	fmt.Printf("\n=== Run Summary ===\n")
	fmt.Printf("Run ID:     %s\n", result.Meta.RunID)
	fmt.Printf("Request:    %s / %s\n", result.Meta.Sector, result.Meta.Region)
	fmt.Printf("Status:     %s\n", result.Status)
	fmt.Printf("Duration:   %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Tasks:      %d started, %d succeeded, %d failed, %d retries\n",
		snap.TasksStarted, snap.TasksSucceeded, snap.TasksFailed, snap.TaskRetries)
	if result.FailureReason != "" {
		fmt.Printf("Reason:     %s\n", result.FailureReason)
	}
	if failed := result.FailedTasks(); len(failed) > 0 {
		fmt.Printf("Failed:     %v\n", failed)
	}

	if len(result.Artifacts) > 0 {
		fmt.Printf("\n--- Artifacts ---\n")
		for _, ref := range result.Artifacts {
			fmt.Printf("  %s (attempt %d): %s\n", ref.TaskName, ref.Attempt, ref.Path)
		}
	}
}
