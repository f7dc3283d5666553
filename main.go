/*
Package main
File: main.go
Description: Server entry point. Loads the configuration, opens the leaderboard
and tick log, starts the real-time WebSocket hub, and runs the heartbeat that
reaps idle plant sessions. SIGHUP reloads the model and levels for new sessions.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/everforgeworks/plantsim/internal/api"
	"github.com/everforgeworks/plantsim/internal/config"
	"github.com/everforgeworks/plantsim/internal/leaderboard"
	"github.com/everforgeworks/plantsim/internal/logging"
	"github.com/everforgeworks/plantsim/internal/session"
	"github.com/everforgeworks/plantsim/internal/telemetry"
)

type flags struct {
	configPath string
	port       int
	logLevel   string
	tickLogDir string
	store      string
	sqlitePath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "plantsim",
		Short: "Plant growth simulation server",
		Long: `plantsim runs one plant per connected player. Clients submit
allocation percentages and a time step over WebSocket or REST and
receive the plant's growth rates and resource pools in return.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	bindFlags(cmd, &f)
	cmd.AddCommand(newConfigCmd(&f))
	return cmd
}

func bindFlags(cmd *cobra.Command, f *flags) {
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "config file (defaults are embedded)")
	cmd.PersistentFlags().IntVarP(&f.port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&f.tickLogDir, "tick-log-dir", "", "directory for the CSV tick log (overrides telemetry.dir)")
	cmd.PersistentFlags().StringVar(&f.store, "store", "", "leaderboard backend: memory or sqlite (overrides leaderboard.backend)")
	cmd.PersistentFlags().StringVar(&f.sqlitePath, "sqlite-path", "", "sqlite database file (overrides leaderboard.sqlite_path)")
}

// newConfigCmd writes the configuration the server would run with, defaults
// and overrides merged, as a starting point for a config file.
func newConfigCmd(f *flags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *f)
			if err != nil {
				return err
			}
			if err := cfg.WriteYAML(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "plantsim.yaml", "destination file")
	return cmd
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if f.tickLogDir != "" {
		cfg.Telemetry.Dir = f.tickLogDir
	}
	if f.store != "" {
		cfg.Leaderboard.Backend = f.store
	}
	if f.sqlitePath != "" {
		cfg.Leaderboard.SQLitePath = f.sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, f flags) error {
	logger := logging.New(os.Stdout, f.logLevel)
	slog.SetDefault(logger)

	// 1. Load the configuration
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Leaderboard and tick log
	store, err := leaderboard.NewStore(cfg.Leaderboard.Backend, cfg.Leaderboard.SQLitePath)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("opening leaderboard: %w", err)
	}
	defer leaderboard.CloseIfSupported(store)

	sink, err := telemetry.NewCSVSink(cfg.Telemetry.Dir, cfg.Telemetry.Buffer, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	// 3. Session registry and the real-time hub
	var hub *api.Hub
	registry := session.NewRegistry(session.Options{
		Model:  cfg.Model,
		Levels: cfg.Levels,
		Sink:   sink,
		Store:  store,
		Logger: logger,
		OnEnd: func(leaderboard.Summary) {
			hub.AnnounceLeaderboard(context.Background())
		},
	})
	hub = api.NewHub(registry, api.HubOptions{
		ReadLimit:      cfg.Server.ReadLimit,
		LeaderboardTop: cfg.Leaderboard.Top,
		Logger:         logger,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// 4. The reaper heartbeat
	go func() {
		if cfg.Server.ReapInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.Server.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reaped := registry.ReapIdle(ctx, cfg.Server.IdleTimeout)
				if len(reaped) > 0 {
					logger.Info("heartbeat", "reaped", len(reaped), "active", registry.Len())
				}
			}
		}
	}()

	// 5. Hot reload: SIGHUP refreshes model and levels for new sessions
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGHUP)
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				logger.Info("SIGHUP: reloading configuration")
				next, err := loadConfig(cmd, f)
				if err != nil {
					logger.Error("reload failed, keeping current configuration", "error", err)
					continue
				}
				registry.Reconfigure(next.Model, next.Levels)
			}
		}
	}()

	// 6. Start the server
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewServer(registry, hub, api.ServerOptions{
			AllowedOrigin:  cfg.Server.AllowedOrigin,
			LeaderboardTop: cfg.Leaderboard.Top,
			MaxBody:        cfg.Server.ReadLimit,
			Logger:         logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("plantsim server live",
			"addr", srv.Addr,
			"levels", len(cfg.Levels),
			"leaderboard", cfg.Leaderboard.Backend,
			"tick_log", cfg.Telemetry.Dir,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	// 7. Shutdown: stop accepting, end every session, flush the tick log
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	closed := registry.CloseAll(shutdownCtx, session.ReasonShutdown)
	logger.Info("sessions closed", "count", closed)
	return nil
}
