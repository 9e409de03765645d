// Package cmd defines the CLI command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pagepal",
	Short: "PagePal - browser assistant backend",
	Long: `PagePal is the backend for a browser-extension chat assistant.
It serves a WebSocket gateway for the extension widget and an HTTP tool
surface, classifies user intent, runs tools (weather, calendar, product
lookup), and synthesizes replies with a generative model.

Running pagepal without arguments starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
