package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/svchittilla/gamemycourse/internal/server"
	"github.com/svchittilla/gamemycourse/internal/tracker"
	"github.com/svchittilla/gamemycourse/internal/transport"
)

var agentURL string

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().StringVar(&agentURL, "url", "", "page url tracked before the first navigate event")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the engagement tracker and its local HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	url := cfg.Agent.URL
	if agentURL != "" {
		url = agentURL
	}

	client := transport.NewClient(transport.Config{
		SnapshotURL: cfg.Collector.SnapshotURL,
		IngestURL:   cfg.Collector.IngestURL,
		Timeout:     cfg.Collector.Timeout.Std(),
		MaxInFlight: cfg.Collector.MaxInFlight,
		Logger:      slog.Default().With("component", "transport"),
	})

	t, err := tracker.New(tracker.Options{
		URL:              url,
		IdleThreshold:    cfg.Agent.IdleThreshold.Std(),
		SnapshotSchedule: cfg.Agent.SnapshotSchedule,
		PollInterval:     cfg.Agent.PlayerPollInterval.Std(),
		Logger:           slog.Default().With("component", "tracker"),
	}, client)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("gamemycourse agent started",
		"address", cfg.Agent.Address,
		"snapshot_schedule", cfg.Agent.SnapshotSchedule,
		"idle_threshold", cfg.Agent.IdleThreshold.Std(),
		"ingest_url", cfg.Collector.IngestURL,
		"snapshot_url", cfg.Collector.SnapshotURL,
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return t.Run(ctx) })
	group.Go(func() error {
		return server.NewServer(t, client, cfg.Agent.Address).Start(ctx)
	})
	return group.Wait()
}
