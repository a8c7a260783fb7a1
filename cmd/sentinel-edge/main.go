package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:   "sentinel-edge",
		Short: "Industrial Sentinel edge runtime",
		Long: `sentinel-edge reads machine telemetry from OPC UA or the built-in simulator,
smooths it, raises threshold alerts, persists frames and alerts, and serves
metrics, status and a live websocket stream.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&gf.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	pf.StringVar(&gf.logFormat, "log-format", "json", "log format (json|console)")

	root.AddCommand(
		runCmd(&gf),
		validateCmd(),
		statsCmd(),
		replayCmd(&gf),
	)
	return root
}

func newLogger(gf *globalFlags) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(gf.logLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	switch gf.logFormat {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format %q must be json or console", gf.logFormat)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
