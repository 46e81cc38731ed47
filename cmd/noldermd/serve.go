package main

import (
	"github.com/spf13/cobra"

	"noldermd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return server.Run(cfg)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
