// Package database implements the optional Postgres/TimescaleDB archive
// of built samples. The JSON artifacts remain the dashboard's source of
// truth; the archive keeps full history beyond the rolling fetch window.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// SampleArchive stores normalized samples keyed by sensor.
type SampleArchive interface {
	// ArchiveSeries inserts all samples of one series in a single
	// transaction, atomically. Duplicate (sensor, timestamp) pairs are
	// upserted so repeated runs are idempotent.
	ArchiveSeries(ctx context.Context, s models.Series) error

	// Close releases the underlying connection pool.
	Close() error
}

// PostgresArchive implements SampleArchive on lib/pq. The target table:
//
//	CREATE TABLE sensor_samples (
//	    sensor_id TEXT        NOT NULL,
//	    ts        TIMESTAMPTZ NOT NULL,
//	    value     DOUBLE PRECISION NOT NULL,
//	    PRIMARY KEY (sensor_id, ts)
//	);
//
// On TimescaleDB the table is a hypertable partitioned on ts.
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive opens and verifies a connection.
func NewPostgresArchive(connStr string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresArchive{db: db}, nil
}

func (a *PostgresArchive) ArchiveSeries(ctx context.Context, s models.Series) error {
	if s.Empty() {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO sensor_samples (sensor_id, ts, value)
        VALUES ($1, $2, $3)
        ON CONFLICT (sensor_id, ts) DO UPDATE SET value = EXCLUDED.value
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range s.Samples {
		if _, err := stmt.ExecContext(ctx, s.SensorID, sample.Timestamp, sample.Value); err != nil {
			return fmt.Errorf("failed to archive sample for %s: %w", s.SensorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (a *PostgresArchive) Close() error {
	return a.db.Close()
}

// Compile-time interface implementation check
var _ SampleArchive = (*PostgresArchive)(nil)
