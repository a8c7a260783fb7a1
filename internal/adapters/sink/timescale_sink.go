package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Tables names the telemetry and alert tables.
type Tables struct {
	Telemetry string `yaml:"telemetry"`
	Alerts    string `yaml:"alerts"`
}

func DefaultTables() Tables {
	return Tables{Telemetry: "telemetry_samples", Alerts: "alerts"}
}

func (t Tables) Validate() error {
	for _, name := range []string{t.Telemetry, t.Alerts} {
		if !identRe.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

type TimescaleSink struct {
	db           *sql.DB
	tables       Tables
	ownsDB       bool
	telemetrySQL string
	alertSQL     string
}

// NewTimescaleSink writes through db. The caller keeps ownership of db.
func NewTimescaleSink(db *sql.DB, tables Tables) (*TimescaleSink, error) {
	if tables.Telemetry == "" && tables.Alerts == "" {
		tables = DefaultTables()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &TimescaleSink{
		db:     db,
		tables: tables,
		telemetrySQL: "INSERT INTO " + tables.Telemetry +
			" (timestamp_utc, rpm, temperature_c, vibration_mms, rpm_smooth, temperature_smooth, vibration_smooth)" +
			" VALUES ($1,$2,$3,$4,$5,$6,$7)",
		alertSQL: "INSERT INTO " + tables.Alerts +
			" (timestamp_utc, level, metric, value, threshold, message)" +
			" VALUES ($1,$2,$3,$4,$5,$6)",
	}, nil
}

// OpenTimescale connects with the postgres driver, verifies the connection
// and returns a sink that closes the pool on Close.
func OpenTimescale(ctx context.Context, connString string, tables Tables) (*TimescaleSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open timescale: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping timescale: %w", err)
	}

	s, err := NewTimescaleSink(db, tables)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) Tables() Tables { return t.tables }

// EnsureSchema creates both tables and their timestamp indexes. With
// hypertable set the telemetry table is converted by the timescaledb
// extension, which must already be installed.
func (t *TimescaleSink) EnsureSchema(ctx context.Context, hypertable bool) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS " + t.tables.Telemetry + ` (
    timestamp_utc TIMESTAMPTZ NOT NULL,
    rpm DOUBLE PRECISION NOT NULL,
    temperature_c DOUBLE PRECISION NOT NULL,
    vibration_mms DOUBLE PRECISION NOT NULL,
    rpm_smooth DOUBLE PRECISION NOT NULL,
    temperature_smooth DOUBLE PRECISION NOT NULL,
    vibration_smooth DOUBLE PRECISION NOT NULL
)`,
		"CREATE INDEX IF NOT EXISTS idx_" + t.tables.Telemetry + "_timestamp ON " + t.tables.Telemetry + " (timestamp_utc)",
		"CREATE TABLE IF NOT EXISTS " + t.tables.Alerts + ` (
    id BIGSERIAL PRIMARY KEY,
    timestamp_utc TIMESTAMPTZ NOT NULL,
    level TEXT NOT NULL,
    metric TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    threshold DOUBLE PRECISION NOT NULL,
    message TEXT NOT NULL
)`,
		"CREATE INDEX IF NOT EXISTS idx_" + t.tables.Alerts + "_timestamp ON " + t.tables.Alerts + " (timestamp_utc)",
	}
	if hypertable {
		stmts = append(stmts, "SELECT create_hypertable('"+t.tables.Telemetry+"', 'timestamp_utc', if_not_exists => TRUE)")
	}

	for _, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (t *TimescaleSink) SaveTelemetry(ctx context.Context, f domain.Frame) error {
	_, err := t.db.ExecContext(ctx, t.telemetrySQL,
		f.Timestamp.UTC(),
		f.RPM,
		f.TemperatureC,
		f.VibrationMmS,
		f.RPMSmoothed,
		f.TemperatureSmoothed,
		f.VibrationSmoothed,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

func (t *TimescaleSink) SaveAlert(ctx context.Context, a domain.AlertEvent) error {
	_, err := t.db.ExecContext(ctx, t.alertSQL,
		a.Timestamp.UTC(),
		a.Severity.String(),
		a.Metric,
		a.Value,
		a.Threshold,
		a.Message,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (t *TimescaleSink) RecentAlerts(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.QueryContext(ctx,
		"SELECT timestamp_utc, level, metric, value, threshold, message FROM "+t.tables.Alerts+
			" ORDER BY timestamp_utc DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertEvent
	for rows.Next() {
		var (
			a     domain.AlertEvent
			level string
		)
		if err := rows.Scan(&a.Timestamp, &level, &a.Metric, &a.Value, &a.Threshold, &a.Message); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.Severity, err = domain.ParseSeverity(level); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *TimescaleSink) Close() error {
	if t.ownsDB {
		return t.db.Close()
	}
	return nil
}

var _ ports.PersistenceSink = (*TimescaleSink)(nil)
