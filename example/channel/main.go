package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	sentinel "github.com/oscar1457/Industrial-Sentinel"
)

// Pushes readings from a goroutine through an ExternalSource and consumes the
// persisted output from a channel sink.
func main() {
	cfg := sentinel.DefaultConfig()
	cfg.System.IngestRateHz = 50

	src := sentinel.NewExternalSource(64)
	sink, records, closeRecords := sentinel.NewChannelSink("fanout", 32)
	defer closeRecords()

	flow, err := sentinel.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go produce(ctx, src)
	go fanoutWorker("forward", records)

	err = flow.StreamIN(sentinel.StreamInSource(src)).Run(ctx, sentinel.StreamOutSink(sink))
	if err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func produce(ctx context.Context, src *sentinel.ExternalSource) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s := sentinel.Sample{
				Timestamp:    t,
				RPM:          1800 + rand.NormFloat64()*40,
				TemperatureC: 70 + rand.NormFloat64(),
				VibrationMmS: 3 + rand.Float64(),
			}
			if !src.TryPublish(s) {
				log.Printf("producer: buffer full, sample dropped")
			}
		}
	}
}

func fanoutWorker(name string, records <-chan sentinel.Record) {
	for rec := range records {
		switch {
		case rec.Alert != nil:
			fmt.Printf("[%s] alert %s %s\n", name, rec.Alert.Severity, rec.Alert.Message)
		case rec.Frame != nil:
			fmt.Printf("[%s] frame rpm=%.0f at %s\n", name, rec.Frame.RPMSmoothed, rec.Frame.Timestamp.Format(time.RFC3339))
		}
	}
}
