package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// RedisStreamConfig points the sink at two capped streams.
type RedisStreamConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	TelemetryStream string `yaml:"telemetry_stream"`
	AlertStream     string `yaml:"alert_stream"`
	MaxLen          int64  `yaml:"max_len"`
}

func (c *RedisStreamConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TelemetryStream == "" {
		c.TelemetryStream = "sentinel:telemetry"
	}
	if c.AlertStream == "" {
		c.AlertStream = "sentinel:alerts"
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 100_000
	}
}

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisStreamSink appends frames and alerts to Redis streams with
// approximate trimming, so readers can tail them with XREAD.
type RedisStreamSink struct {
	client streamClient
	cfg    RedisStreamConfig
}

// OpenRedisStream dials Redis and checks the connection.
func OpenRedisStream(ctx context.Context, cfg RedisStreamConfig) (*RedisStreamSink, error) {
	cfg.ApplyDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newRedisStreamSink(rdb, cfg), nil
}

func newRedisStreamSink(client streamClient, cfg RedisStreamConfig) *RedisStreamSink {
	cfg.ApplyDefaults()
	return &RedisStreamSink{client: client, cfg: cfg}
}

func (r *RedisStreamSink) Name() string { return "redis-streams" }

func (r *RedisStreamSink) SaveTelemetry(ctx context.Context, f domain.Frame) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.TelemetryStream,
		MaxLen: r.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{
			"ts":                   f.Timestamp.UTC().Format(time.RFC3339Nano),
			"rpm":                  formatFloat(f.RPM),
			"temperature_c":        formatFloat(f.TemperatureC),
			"vibration_mm_s":       formatFloat(f.VibrationMmS),
			"rpm_smoothed":         formatFloat(f.RPMSmoothed),
			"temperature_smoothed": formatFloat(f.TemperatureSmoothed),
			"vibration_smoothed":   formatFloat(f.VibrationSmoothed),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.cfg.TelemetryStream, err)
	}
	return nil
}

func (r *RedisStreamSink) SaveAlert(ctx context.Context, a domain.AlertEvent) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.AlertStream,
		MaxLen: r.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{
			"ts":        a.Timestamp.UTC().Format(time.RFC3339Nano),
			"severity":  a.Severity.String(),
			"metric":    a.Metric,
			"value":     formatFloat(a.Value),
			"threshold": formatFloat(a.Threshold),
			"message":   a.Message,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.cfg.AlertStream, err)
	}
	return nil
}

func (r *RedisStreamSink) Close() error { return r.client.Close() }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ ports.PersistenceSink = (*RedisStreamSink)(nil)
