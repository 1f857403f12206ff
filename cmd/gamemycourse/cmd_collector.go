package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/svchittilla/gamemycourse/internal/collector"
	"github.com/svchittilla/gamemycourse/internal/database"
)

func init() {
	rootCmd.AddCommand(collectorCmd)
}

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the snapshot collector",
	Args:  cobra.NoArgs,
	RunE:  runCollector,
}

func runCollector(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.Collector.Database), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := database.NewDatabase(cfg.Collector.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("gamemycourse collector started", "address", cfg.Collector.Address, "database", cfg.Collector.Database)
	return collector.NewServer(db, cfg.Collector.Address).Start(ctx)
}
