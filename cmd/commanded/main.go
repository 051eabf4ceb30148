package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/Aleksion/commanded/internal/cmd/client"
	serverrun "github.com/Aleksion/commanded/internal/cmd/server"
	cfgpkg "github.com/Aleksion/commanded/internal/config"
	"github.com/Aleksion/commanded/internal/runtime"
	logpkg "github.com/Aleksion/commanded/pkg/log"
)

func main() {
	// Respect COMMANDED_LOG_LEVEL for CLI output
	level := os.Getenv("COMMANDED_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by pgx) to our logger
	logpkg.RedirectStdLog(logger)

	var configPath string
	var dsn string

	open := func(ctx context.Context) (*runtime.Runtime, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfgpkg.FromEnv(&cfg)
		if dsn != "" {
			cfg.Postgres.DSN = dsn
		}
		return runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
	}

	rootCmd := clientcmd.NewRoot(open)
	rootCmd.Short = "Commanded event store CLI"
	rootCmd.Long = "Commanded reads event journals stored in Postgres. This CLI performs one-shot reads, health checks, and serves the read API."
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides config and env)")

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Serve the read API over HTTP",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			httpAddr, _ := cmd.Flags().GetString("http")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if dsn != "" {
				cfg.Postgres.DSN = dsn
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
				Logger:   logger,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
