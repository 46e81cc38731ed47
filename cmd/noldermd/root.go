package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noldermd/internal/config"
	"noldermd/internal/server"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "noldermd",
	Short: "Markdown notes with tasks that live in the notes",
	Long: `noldermd indexes the checkbox tasks written in a folder of markdown
notes, keeps manual task order and daily schedules beside them, and serves
the result over a JSON API.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default <notes-dir>/.noldermd/config.yaml)")
	flags.String("notes-dir", "./notes", "path to the notes directory")
	flags.String("state-dir", "", "directory for ranks, schedule state and the lock (default <notes-dir>/.noldermd)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// openApp loads the configuration and an indexed engine for one-shot
// commands. Logs go to stderr so stdout stays scriptable.
func openApp(cmd *cobra.Command) (*server.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, ok := server.NewLogger(cfg.LogLevel, os.Stderr)
	if !ok {
		logger.Warn("unknown log level, defaulting to info", "level", cfg.LogLevel)
	}

	app, err := server.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := app.Engine.Load(context.Background()); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("load notes: %w", err)
	}
	return app, nil
}
