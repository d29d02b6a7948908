// Package main provides the nekoscout gateway entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nekoscout/internal/handler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nekoscout",
		Short: "Token validation and chat completion gateway",
		Long: `nekoscout validates NewAPI and webscout tokens and dispatches
OpenAI-compatible chat completions to a provider chosen from the model name.

Usage modes:
  nekoscout                  Start the HTTP server (same as "serve")
  nekoscout <command>        Run a single command (see below)

Configuration is read from environment variables (PORT, NEWAPI_SERVERS,
DEFAULT_PROVIDER, DATABASE_URL, ...).`,
		Version:       handler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		validateCmd(),
		routeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
