// Command vellumd runs the vellum history daemon.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vellum/internal/config"
	"vellum/internal/crypto"
	"vellum/internal/daemon"
	"vellum/internal/history"
	"vellum/internal/layout"
	"vellum/internal/logging"
	"vellum/internal/syncbackend"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // allow all levels; filtering done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "vellumd",
		Short: "Multi-host shell history daemon",
	}
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $VELLUM_CONFIG or platform config dir)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			return run(cmd.Context(), logger, configFlag)
		},
	}
	rootCmd.AddCommand(serveCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configFlag string) error {
	cfgPath := configFlag
	if cfgPath == "" {
		p, err := config.Resolve()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	logger.Info("loaded config", "path", cfgPath, "hostname", cfg.Hostname, "sync_enabled", cfg.Sync.Enabled)

	key, err := crypto.LoadKey()
	if err != nil {
		return fmt.Errorf("load crypto key: %w", err)
	}

	dir := layout.New(cfg.StateDir)
	if err := dir.EnsureExists(); err != nil {
		return err
	}

	syncer, syncRoot, err := openSyncer(logger, cfg)
	if err != nil {
		return err
	}

	h, err := history.Load(cfg.Hostname, cfg.StateDir, syncRoot, key, logger)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	interval, err := cfg.SyncInterval()
	if err != nil {
		return err
	}
	if !cfg.Sync.Enabled {
		interval = 0
	}

	d, err := daemon.New(daemon.Config{
		Layout:   dir,
		Host:     cfg.Hostname,
		History:  h,
		Syncer:   syncer,
		Interval: interval,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	logger.Info("daemon listening", "socket", dir.SocketPath())
	return d.Serve(ctx)
}

// openSyncer builds the configured Syncer and the directory History
// should treat as the sync root: the git working tree when sync is
// enabled and a URL is configured, otherwise a fixed local directory
// with no remote effect, per spec.md's Local variant.
func openSyncer(logger *slog.Logger, cfg config.Config) (syncbackend.Syncer, string, error) {
	syncRoot := cfg.SyncRoot()

	if !cfg.Sync.Enabled || cfg.Sync.URL == "" {
		return syncbackend.NewLocal(syncRoot), syncRoot, nil
	}

	git, err := syncbackend.NewGit(syncbackend.GitConfig{
		URL:        cfg.Sync.URL,
		Dir:        syncRoot,
		SSHKeyPath: cfg.Sync.SSHKey,
		Logger:     logger.With("component", "syncbackend"),
	})
	if err != nil {
		return nil, "", fmt.Errorf("open git sync backend: %w", err)
	}
	return git, syncRoot, nil
}
