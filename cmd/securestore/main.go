package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/benaskins/securestore/internal/config"
)

var (
	configPath string
	remote     bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "securestore",
	Short:         "Secure key-value credential store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.securestore/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&remote, "remote", false, "send operations to the running daemon instead of opening the store")
}

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		memguard.SafeExit(1)
	}
}
