// Command tdf-alerts checks TDF.org for newly available show dates and
// sends an alert through the configured channel. Each invocation is one
// batch pass; scheduling belongs to cron or a task scheduler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/monitor"
	"github.com/Mantene/tdf-alerts/internal/notify"
	"github.com/Mantene/tdf-alerts/internal/scraper"
	"github.com/Mantene/tdf-alerts/internal/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tdf-alerts",
		Short: "Monitor TDF.org for newly available show dates",
		Long: `tdf-alerts scrapes the TDF offerings listing for the configured show
titles, diffs what it finds against previously alerted state, and sends a
notification only when new availability appears. A run that finds nothing
new exits 0 without touching state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration")

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or clear persisted alert state",
	}
	stateCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the persisted state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showState(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	})
	stateCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear persisted state so everything alerts as new again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return resetState(cmd.Context(), configPath)
		},
	})
	root.AddCommand(stateCmd)

	return root
}

func runMonitor(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	filter, err := cfg.FilterTime()
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	channel, err := notify.NewChannel(cfg.Notifications, logger)
	if err != nil {
		return err
	}

	runner := monitor.New(
		scraper.New(cfg.Scrape, cfg.Credentials, logger),
		store,
		notify.NewDispatcher(channel, logger),
		monitor.Options{
			Titles:            cfg.Titles,
			Filter:            filter,
			FilterLabel:       cfg.FilterDate,
			DateLayout:        cfg.DateFormat,
			PruneMissing:      cfg.State.PruneMissing,
			FailOnNotifyError: cfg.Notifications.FailOnError,
		},
		logger,
	)

	logger.Info("Starting run",
		"titles", len(cfg.Titles),
		"filter_date", cfg.FilterDate,
		"channel", channel.Name())

	return runner.Run(ctx)
}

func showState(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger("warn")

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	doc, err := store.Load(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func resetState(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	release, err := store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return store.Reset(ctx)
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state.Store, error) {
	return state.New(ctx, state.Options{
		Path:            cfg.State.Path,
		Bucket:          cfg.State.Bucket,
		CredentialsFile: cfg.State.CredentialsFile,
		LockTimeout:     cfg.State.LockTimeout,
	}, logger)
}

func newLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
