package sink

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

func TestTimescaleSinkSaveTelemetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, err := NewTimescaleSink(db, DefaultTables())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ts := time.Now().UTC()

	expectedQuery := regexp.QuoteMeta("INSERT INTO telemetry_samples (timestamp_utc, rpm, temperature_c, vibration_mms, rpm_smooth, temperature_smooth, vibration_smooth) VALUES ($1,$2,$3,$4,$5,$6,$7)")
	mock.ExpectExec(expectedQuery).
		WithArgs(ts, 1800.0, 70.0, 3.0, 1790.0, 69.5, 2.9).
		WillReturnResult(sqlmock.NewResult(1, 1))

	frame := domain.Frame{
		Timestamp:           ts,
		RPM:                 1800,
		TemperatureC:        70,
		VibrationMmS:        3,
		RPMSmoothed:         1790,
		TemperatureSmoothed: 69.5,
		VibrationSmoothed:   2.9,
	}
	if err := sink.SaveTelemetry(context.Background(), frame); err != nil {
		t.Fatalf("save telemetry: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkSaveAlert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, err := NewTimescaleSink(db, Tables{Telemetry: "frames", Alerts: "machine_alerts"})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ts := time.Now().UTC()

	expectedQuery := regexp.QuoteMeta("INSERT INTO machine_alerts (timestamp_utc, level, metric, value, threshold, message) VALUES ($1,$2,$3,$4,$5,$6)")
	mock.ExpectExec(expectedQuery).
		WithArgs(ts, "Critical", "RPM", 3300.0, 3200.0, "RPM above critical limit").
		WillReturnResult(sqlmock.NewResult(1, 1))

	alert := domain.AlertEvent{
		Timestamp: ts,
		Severity:  domain.SeverityCritical,
		Metric:    "RPM",
		Value:     3300,
		Threshold: 3200,
		Message:   "RPM above critical limit",
	}
	if err := sink.SaveAlert(context.Background(), alert); err != nil {
		t.Fatalf("save alert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkPropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewTimescaleSink(db, DefaultTables())
	dbErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO telemetry_samples").WillReturnError(dbErr)

	err = sink.SaveTelemetry(context.Background(), domain.Frame{Timestamp: time.Now()})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestTimescaleSinkEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewTimescaleSink(db, DefaultTables())
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS telemetry_samples").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_telemetry_samples_timestamp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS alerts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_alerts_timestamp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT create_hypertable('telemetry_samples'")).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := sink.EnsureSchema(context.Background(), true); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkRecentAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewTimescaleSink(db, DefaultTables())
	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"timestamp_utc", "level", "metric", "value", "threshold", "message"}).
		AddRow(ts, "Warning", "Temp", 90.0, 85.5, "Temperature high")
	mock.ExpectQuery("SELECT timestamp_utc, level, metric, value, threshold, message FROM alerts").
		WithArgs(10).
		WillReturnRows(rows)

	got, err := sink.RecentAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent alerts: %v", err)
	}
	if len(got) != 1 || got[0].Severity != domain.SeverityWarning || got[0].Metric != "Temp" {
		t.Fatalf("unexpected alerts: %+v", got)
	}
}

func TestTimescaleSinkRejectsBadTableNames(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	if _, err := NewTimescaleSink(db, Tables{Telemetry: "samples; DROP TABLE x", Alerts: "alerts"}); err == nil {
		t.Fatalf("expected invalid table name to be rejected")
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink, _ := NewTimescaleSink(db, DefaultTables())
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close on borrowed db: %v", err)
	}
}
