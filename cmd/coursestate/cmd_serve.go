package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/coursestate/internal/httpapi"
	"github.com/user/coursestate/internal/prefs"
	"github.com/user/coursestate/internal/scheduler"
	"github.com/user/coursestate/internal/state"
	"github.com/user/coursestate/internal/telemetry"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coursestate daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := state.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	if err := state.Migrate(db); err != nil {
		return err
	}

	// Telemetry sink: sampled, guarded, slog-backed.
	var sink telemetry.Sink = telemetry.NopSink{}
	if cfg.Telemetry.Enabled {
		sink = telemetry.NewSampled(telemetry.NewLogSink(slog.Default()))
	}

	store := state.NewClient(db, sink)

	// Preference client, only when a user API is configured.
	var prefsClient *prefs.Client
	if cfg.Preferences.BaseURL != "" {
		prefsClient = prefs.NewClient(prefs.NewHTTPProvider(cfg.Preferences.BaseURL, cfg.Preferences.APIKey))
	}

	server := httpapi.NewServer(store, prefsClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// History retention job.
	retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	pruner := scheduler.NewPruner(db, retention, cfg.History.CleanupBatchSize)
	sched := scheduler.New(pruner, cfg.History.CleanupSchedule)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start history cleanup: %w", err)
	}
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("coursestate started",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.Database.Path,
		"log_level", cfg.LogLevel,
		"telemetry", cfg.Telemetry.Enabled,
		"history_retention_days", cfg.History.RetentionDays,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
