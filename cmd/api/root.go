package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	app := &appContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "interview-insights",
		Short:         "Interview recording analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load() // loads .env
			return app.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newProcessCommand(app))
	rootCmd.AddCommand(newBatchCommand(app))

	return rootCmd
}
