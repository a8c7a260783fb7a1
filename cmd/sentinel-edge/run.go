package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oscar1457/Industrial-Sentinel/internal/app/config"
	"github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

const shutdownTimeout = 5 * time.Second

func runCmd(gf *globalFlags) *cobra.Command {
	var (
		cfgPath string
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the edge runtime using the provided config",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(gf)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := sentinel.LoadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !watch {
				rt, err := sentinel.NewRuntime(cfg, sentinel.WithLogger(log))
				if err != nil {
					return err
				}
				return rt.Run(ctx)
			}
			return runWatched(ctx, cfgPath, cfg, log)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfgPath, "config", "c", "./data/config.yaml", "path to the configuration file")
	fs.BoolVar(&watch, "watch", false, "restart the runtime when the configuration file changes")
	return cmd
}

// runWatched runs the runtime next to a config watcher. A reload stops the
// current runtime and starts one with the new config; if that fails the
// previous config is started again.
func runWatched(ctx context.Context, path string, cfg *sentinel.Config, log *zap.Logger) error {
	reloads := make(chan *sentinel.Config, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return config.Watch(ctx, path, log, func(next *config.Config) {
			// keep only the newest pending config
			select {
			case <-reloads:
			default:
			}
			reloads <- next
		})
	})
	g.Go(func() error {
		return supervise(ctx, cfg, reloads, log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func supervise(ctx context.Context, cfg *sentinel.Config, reloads <-chan *sentinel.Config, log *zap.Logger) error {
	rt, err := startRuntime(cfg, log)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(rt)

		case next := <-reloads:
			if err := shutdown(rt); err != nil {
				log.Error("runtime_shutdown_failed", zap.Error(err))
			}

			rt, err = startRuntime(next, log)
			if err == nil {
				cfg = next
				log.Info("runtime_reloaded")
				continue
			}
			log.Error("runtime_reload_failed", zap.Error(err))

			rt, err = startRuntime(cfg, log)
			if err != nil {
				return fmt.Errorf("restart previous config: %w", err)
			}
		}
	}
}

func startRuntime(cfg *sentinel.Config, log *zap.Logger) (*sentinel.Runtime, error) {
	rt, err := sentinel.NewRuntime(cfg, sentinel.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := rt.Start(); err != nil {
		_ = rt.Shutdown(context.Background())
		return nil, err
	}
	return rt, nil
}

func shutdown(rt *sentinel.Runtime) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return rt.Shutdown(ctx)
}
