package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

func validateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sentinel.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			source := "simulator"
			if cfg.UsesOPCUA() {
				source = "opcua " + cfg.OPCUA.Endpoint
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config %s looks good\n", cfgPath)
			fmt.Fprintf(out, "  source:      %s\n", source)
			fmt.Fprintf(out, "  ingest:      %d Hz\n", cfg.System.IngestRateHz)
			fmt.Fprintf(out, "  persistence: %s\n", cfg.Persistence.Driver)
			fmt.Fprintf(out, "  http:        %s\n", cfg.Metrics.Addr)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./data/config.yaml", "path to the configuration file to validate")
	return cmd
}
