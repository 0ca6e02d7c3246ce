package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/model"
)

// AlertRecord is one row of the alert ledger: a fired threshold breach
// or a container crash. Metric samples themselves are never stored.
type AlertRecord struct {
	ID        string          `json:"id"`
	Kind      model.AlertKind `json:"kind"`
	Mount     string          `json:"mount,omitempty"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
}

// AlertHistory defines the persistence used by the monitor: an
// append-only alert ledger plus last-fired bookkeeping for scheduled
// reports, so report catch-up survives restarts.
type AlertHistory interface {
	// Record appends an alert to the ledger
	Record(ctx context.Context, record *AlertRecord) error

	// CountSince returns the number of resource alerts and container
	// crashes recorded after the given instant
	CountSince(ctx context.Context, since time.Time) (alerts int, crashes int, err error)

	// LastReport returns when a report kind last fired, if ever
	LastReport(ctx context.Context, kind model.ReportKind) (time.Time, bool, error)

	// MarkReport records that a report kind fired at the given instant
	MarkReport(ctx context.Context, kind model.ReportKind, at time.Time) error

	// DeleteBefore deletes ledger rows older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error

	// Close releases the underlying database
	Close() error
}

// SQLiteAlertHistory implements AlertHistory using SQLite
type SQLiteAlertHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteAlertHistory opens (or creates) the history database. An
// existing file is kept: persisted report state is what makes missed
// reports fire exactly once across restarts.
func NewSQLiteAlertHistory(logger *zap.Logger, dbPath string) (*SQLiteAlertHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteAlertHistory{
		logger: logger.Named("history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteAlertHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			mount TEXT,
			value REAL,
			threshold REAL,
			message TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_kind ON alerts(kind);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);

		CREATE TABLE IF NOT EXISTS report_state (
			kind TEXT PRIMARY KEY,
			fired_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Record implements AlertHistory.Record
func (s *SQLiteAlertHistory) Record(ctx context.Context, record *AlertRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, kind, mount, value, threshold, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		string(record.Kind),
		sql.NullString{String: record.Mount, Valid: record.Mount != ""},
		record.Value,
		record.Threshold,
		record.Message,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// CountSince implements AlertHistory.CountSince
func (s *SQLiteAlertHistory) CountSince(ctx context.Context, since time.Time) (int, int, error) {
	var alerts, crashes int

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alerts WHERE created_at > ? AND kind != ?`,
		since.UTC(), string(model.AlertKindCrash),
	).Scan(&alerts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alerts WHERE created_at > ? AND kind = ?`,
		since.UTC(), string(model.AlertKindCrash),
	).Scan(&crashes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count crashes: %w", err)
	}

	return alerts, crashes, nil
}

// LastReport implements AlertHistory.LastReport
func (s *SQLiteAlertHistory) LastReport(ctx context.Context, kind model.ReportKind) (time.Time, bool, error) {
	var firedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT fired_at FROM report_state WHERE kind = ?`,
		string(kind),
	).Scan(&firedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load report state: %w", err)
	}
	return firedAt, true, nil
}

// MarkReport implements AlertHistory.MarkReport
func (s *SQLiteAlertHistory) MarkReport(ctx context.Context, kind model.ReportKind, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_state (kind, fired_at) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET fired_at = excluded.fired_at`,
		string(kind), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark report: %w", err)
	}
	return nil
}

// DeleteBefore implements AlertHistory.DeleteBefore
func (s *SQLiteAlertHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM alerts WHERE created_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete old alerts: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		s.logger.Info("Pruned alert history", zap.Int64("rows", rows))
	}
	return nil
}

// Close implements AlertHistory.Close
func (s *SQLiteAlertHistory) Close() error {
	return s.db.Close()
}
