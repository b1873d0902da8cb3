package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentdash/agentdash/internal/jobmanager"
	"github.com/agentdash/agentdash/internal/proc"
	"github.com/agentdash/agentdash/internal/sessionlog"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	flagCfg := defaultConfig()
	var configPath string

	c := &cobra.Command{
		Use:     "dashserver",
		Short:   "HTTP server for running agent worker jobs and browsing session logs",
		Example: "dashserver --worker-bin ./agent-worker --debug",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			applyFlagOverrides(cmd.Flags(), &cfg, flagCfg)

			if err := cfg.validate(); err != nil {
				return err
			}

			return runServer(&cfg)
		},
	}

	c.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	bindFlags(c.Flags(), &flagCfg)

	return c
}

func runServer(cfg *config) error {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(
		os.Stderr,
		&slog.HandlerOptions{Level: level},
	))

	manager := jobmanager.NewManager(
		jobmanager.Config{
			DataDir:        cfg.DataDir,
			WorkerBin:      cfg.WorkerBin,
			DefaultWorkdir: cfg.Workdir,
		},
		proc.UnixProber{},
		logger,
	)

	sessions := sessionlog.NewReader(cfg.SessionLogsDir, logger)

	s := newServer(manager, sessions, logger)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.start(listener)
	}()

	logger.Info("server listening", "addr", listener.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.shutdown(shutdownCtx)
	manager.Shutdown()

	return nil
}
