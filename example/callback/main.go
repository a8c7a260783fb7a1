package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

func main() {
	flow, err := sentinel.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onFrame := func(f sentinel.Frame) error {
		fmt.Printf("%s rpm=%.0f temp=%.1f vib=%.2f\n",
			f.Timestamp.Format(time.RFC3339Nano),
			f.RPMSmoothed,
			f.TemperatureSmoothed,
			f.VibrationSmoothed,
		)
		return nil
	}
	onAlert := func(a sentinel.AlertEvent) error {
		fmt.Printf("ALERT %s %s %.2f > %.2f: %s\n", a.Severity, a.Metric, a.Value, a.Threshold, a.Message)
		return nil
	}

	if err := flow.Run(ctx, sentinel.StreamOutCallback("stdout", onFrame, onAlert)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
