package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/journal"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/sink"
	"github.com/oscar1457/Industrial-Sentinel/internal/app/config"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

func replayCmd(gf *globalFlags) *cobra.Command {
	var (
		cfgPath string
		dir     string
		target  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Deliver journaled frames and alerts to TimescaleDB or Redis",
		Long: `replay drains the local journal written by the journal persistence driver
into the database configured in the timescale or redis section, then compacts
the journal. Delivery stops at the first write error and resumes from there on
the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(gf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dir == "" {
				dir = cfg.Journal.Dir
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			dst, err := openReplayTarget(ctx, cfg, target)
			if err != nil {
				return err
			}
			defer dst.Close()

			j, err := journal.Open(dir)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			res, err := journal.Replay(ctx, j, dst, log)
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d records from %s to %s\n", res.Delivered, dir, dst.Name())
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfgPath, "config", "c", "./data/config.yaml", "path to the configuration file")
	fs.StringVar(&dir, "dir", "", "journal directory (defaults to journal.dir)")
	fs.StringVar(&target, "to", "", "target driver: timescale or redis (defaults to persistence.driver)")
	fs.DurationVar(&timeout, "timeout", 10*time.Minute, "overall replay deadline")
	return cmd
}

func openReplayTarget(ctx context.Context, cfg *config.Config, target string) (ports.PersistenceSink, error) {
	if target == "" {
		target = cfg.Persistence.Driver
	}

	switch target {
	case config.DriverTimescale:
		if cfg.Timescale.ConnString == "" {
			return nil, fmt.Errorf("timescale.conn_string is required")
		}
		ts, err := sink.OpenTimescale(ctx, cfg.Timescale.ConnString, cfg.Timescale.Tables)
		if err != nil {
			return nil, err
		}
		if cfg.Timescale.EnsureSchema {
			if err := ts.EnsureSchema(ctx, cfg.Timescale.Hypertable); err != nil {
				_ = ts.Close()
				return nil, err
			}
		}
		return ts, nil
	case config.DriverRedis:
		rs, err := sink.OpenRedisStream(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("replay target %q must be %s or %s", target, config.DriverTimescale, config.DriverRedis)
	}
}
