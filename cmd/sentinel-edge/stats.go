package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

func statsCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the /status endpoint and print live pipeline counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client := &http.Client{Timeout: 2 * time.Second}

			if once {
				return printStatus(cmd.Context(), client, url, out)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(out, "Streaming status from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printStatus(ctx, client, url, out); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
					}
				}
			}
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&url, "url", "http://localhost:9100/status", "runtime status endpoint")
	fs.DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	fs.BoolVar(&once, "once", false, "print a single snapshot and exit")
	return cmd
}

func fetchStatus(ctx context.Context, client *http.Client, url string) (sentinel.RuntimeStatus, error) {
	var st sentinel.RuntimeStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return st, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

func printStatus(ctx context.Context, client *http.Client, url string, out io.Writer) error {
	st, err := fetchStatus(ctx, client, url)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, formatStatus(st))
	return nil
}

func formatStatus(st sentinel.RuntimeStatus) string {
	p := st.Pipeline
	health := "ok"
	if !p.PersistenceHealthy {
		health = "degraded"
	}
	return fmt.Sprintf("[%s] %s ingest=%.1fHz process=%.1fHz persist=%.1fHz latency=%.2fms raw=%d persistq=%d dropped=%d persist_drops=%d sink=%s(%s) rss=%.1fMiB",
		p.Timestamp.Format(time.RFC3339),
		st.Source,
		p.IngestRateHz, p.ProcessRateHz, p.PersistRateHz,
		p.EndToEndLatencyMs,
		p.RawQueueDepth, p.PersistQueueDepth,
		p.DroppedSamples, p.PersistDrops,
		st.Sink, health,
		float64(st.ProcessRSSBytes)/(1<<20),
	)
}
