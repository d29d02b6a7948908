package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nekoscout/internal/config"
)

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <model>",
		Short: "Show which provider a model is dispatched to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			svc := newServices(cfg)
			name := svc.engine.Route(args[0])
			if _, err := svc.registry.Get(name); err != nil {
				return fmt.Errorf("model %q routes to %q: %w", args[0], name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], name)
			return nil
		},
	}
}
