package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nekoscout/internal/auth"
	"nekoscout/internal/config"
)

func validateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Validate a token against the configured servers",
		Long: `Classify a token and validate it once, printing one line per server.

Examples:
  nekoscout validate sk-...          # Check a NewAPI token on every server
  nekoscout validate ws_... --json   # Print the raw report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			report, err := newServices(cfg).auth.Validate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func statusLabel(s auth.Status) string {
	switch s {
	case auth.StatusValid:
		return color.GreenString("✓ valid")
	case auth.StatusInvalid:
		return color.RedString("✗ invalid")
	case auth.StatusTimeout:
		return color.YellowString("⏱ timeout")
	default:
		return color.RedString("! " + string(s))
	}
}

func printReport(w io.Writer, report *auth.Report) {
	fmt.Fprintf(w, "Token type: %s\n", color.CyanString(string(report.Type)))

	if report.Type == auth.TokenWebscout {
		ws := report.Webscout
		fmt.Fprintf(w, "  %-12s %s\n", "webscout", statusLabel(ws.Status))
		if ws.Status == auth.StatusValid {
			fmt.Fprintf(w, "  user:        %s\n", ws.UserID)
			fmt.Fprintf(w, "  permissions: %v\n", ws.Permissions)
			fmt.Fprintf(w, "  rate limit:  %d/min, %d/day\n", ws.RateLimit.RequestsPerMinute, ws.RateLimit.RequestsPerDay)
		} else {
			fmt.Fprintf(w, "  error:       %s\n", ws.Error)
		}
		return
	}

	for _, r := range report.NewAPI.Servers {
		detail := r.Error
		if r.Status == auth.StatusValid {
			detail = fmt.Sprintf("balance=%v", r.Balance)
		}
		fmt.Fprintf(w, "  %-12s %s  %s\n", r.Server, statusLabel(r.Status), detail)
	}
	fmt.Fprintf(w, "Valid on %d of %d servers\n", len(report.NewAPI.ValidServers), len(report.NewAPI.Servers))
}
