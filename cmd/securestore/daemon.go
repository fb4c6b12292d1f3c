package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/securestore/internal/api"
	"github.com/benaskins/securestore/internal/config"
	"github.com/benaskins/securestore/internal/metrics"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the securestore daemon",
	Long:  "Serve the credential store over a Unix socket. The passcode is reloaded when the config file changes.",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	slog.Info("securestore daemon starting", "backend", cfg.Backend, "config", configFile())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	rec := metrics.NewRecorder()
	stack, err := openLocal(cfg, "daemon", rec)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Start API server
	socketPath := cfg.Socket()
	if err := ensureParent(socketPath); err != nil {
		return fmt.Errorf("creating socket dir: %w", err)
	}

	srv := api.NewServer(stack.dispatcher, rec.Handler())

	// Start API in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenUnix(socketPath)
	}()

	// Passcode changes take effect without a restart.
	if path := configFile(); path != "" {
		if err := ensureParent(path); err == nil {
			go func() {
				err := config.Watch(ctx, path, func(next *config.Config) {
					stack.gate.SetAuthenticator(passcodeAuthenticator(next))
					slog.Info("presence passcode reloaded", "enrolled", next.Presence.PasscodeHash != "")
				})
				if err != nil {
					slog.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	slog.Info("securestore daemon ready", "socket", socketPath)

	// Wait for signal or error
	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			slog.Error("API server error", "error", err)
		}
	}

	// Graceful shutdown
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	os.Remove(socketPath)

	slog.Info("securestore daemon stopped")
	return nil
}
