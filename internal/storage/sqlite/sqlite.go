// Package sqlite stores processing runs in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a storage.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ storage.Store = (*Store)(nil)

// New opens the database at path, creating it if needed, and applies any
// pending migrations.
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	m := migrate.NewMigrator(db, MigrationProvider(), logger)
	if err := m.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	logger.Infow("sqlite store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// OpenDB opens the database at path without migrating it.
func OpenDB(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// MigrationProvider returns the schema migrations embedded in the binary.
func MigrationProvider() *migrate.FSProvider {
	return migrate.NewFSProvider(migrations, "migrations", "", migrate.DriverSQLite)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) *storage.Health {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "SQLite ping failed", err)
	}
	return storage.NewHealth(storage.StatusHealthy, "SQLite database reachable", nil)
}

func (s *Store) SaveRun(ctx context.Context, r *storage.RunResults) error {
	warnings, err := storage.EncodeWarnings(r.Run.Warnings)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	run := r.Run
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, flight, model, start_time, end_time,
			row_count, segment_count, cell_count, min_in_cloud_altitude, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), unixNano(run.CreatedAt), run.Flight, run.Model,
		unixNano(run.Start), unixNano(run.End), run.Rows, run.Segments, run.Cells,
		nullable(run.MinInCloudAltitude), warnings)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	blockStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO blocks (run_id, kind, seq, label, start_time, end_time,
			lower_bound, upper_bound, location, block_id, row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare blocks: %w", err)
	}
	defer blockStmt.Close()
	for _, b := range r.Blocks {
		_, err := blockStmt.ExecContext(ctx, run.ID.String(), string(b.Kind), b.Seq, b.Label,
			unixNano(b.Start), unixNano(b.End), nullable(b.Lower), nullable(b.Upper),
			b.Location, b.BlockID, b.Rows)
		if err != nil {
			return fmt.Errorf("insert %s block %d: %w", b.Kind, b.Seq, err)
		}
	}

	cellStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (run_id, seq, time, latitude, longitude, altitude, vals)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cells: %w", err)
	}
	defer cellStmt.Close()
	for _, c := range r.Cells {
		vals, err := storage.EncodeValues(c.Values)
		if err != nil {
			return err
		}
		_, err = cellStmt.ExecContext(ctx, run.ID.String(), c.Seq, unixNano(c.Time),
			nullable(c.Latitude), nullable(c.Longitude), nullable(c.Altitude), vals)
		if err != nil {
			return fmt.Errorf("insert cell %d: %w", c.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	s.logger.Infow("stored run", "run", run.ID, "blocks", len(r.Blocks), "cells", len(r.Cells))
	return nil
}

const runColumns = `id, created_at, flight, model, start_time, end_time,
	row_count, segment_count, cell_count, min_in_cloud_altitude, warnings`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (storage.Run, error) {
	var (
		r                 storage.Run
		id                string
		created, from, to int64
		minAlt            sql.NullFloat64
		warnings          []byte
	)
	err := sc.Scan(&id, &created, &r.Flight, &r.Model, &from, &to,
		&r.Rows, &r.Segments, &r.Cells, &minAlt, &warnings)
	if err != nil {
		return r, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return r, fmt.Errorf("run id %q: %w", id, err)
	}
	r.CreatedAt, r.Start, r.End = fromUnixNano(created), fromUnixNano(from), fromUnixNano(to)
	r.MinInCloudAltitude = orNaN(minAlt)
	if r.Warnings, err = storage.DecodeWarnings(warnings); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]storage.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []storage.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) exists(ctx context.Context, id uuid.UUID) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Blocks(ctx context.Context, id uuid.UUID, kind storage.BlockKind) ([]storage.BlockRecord, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	q := `SELECT kind, seq, label, start_time, end_time, lower_bound, upper_bound,
		location, block_id, row_count FROM blocks WHERE run_id = ?`
	args := []any{id.String()}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY kind, seq`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("blocks for run %s: %w", id, err)
	}
	defer rows.Close()

	out := []storage.BlockRecord{}
	for rows.Next() {
		var (
			b        storage.BlockRecord
			k        string
			from, to int64
			lo, hi   sql.NullFloat64
		)
		if err := rows.Scan(&k, &b.Seq, &b.Label, &from, &to, &lo, &hi, &b.Location, &b.BlockID, &b.Rows); err != nil {
			return nil, err
		}
		b.RunID, b.Kind = id, storage.BlockKind(k)
		b.Start, b.End = fromUnixNano(from), fromUnixNano(to)
		b.Lower, b.Upper = orNaN(lo), orNaN(hi)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Cells(ctx context.Context, id uuid.UUID) ([]storage.CellRecord, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, time, latitude, longitude, altitude, vals
		FROM cells WHERE run_id = ? ORDER BY time, seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("cells for run %s: %w", id, err)
	}
	defer rows.Close()

	out := []storage.CellRecord{}
	for rows.Next() {
		var (
			c             storage.CellRecord
			t             int64
			lat, lon, alt sql.NullFloat64
			vals          []byte
		)
		if err := rows.Scan(&c.Seq, &t, &lat, &lon, &alt, &vals); err != nil {
			return nil, err
		}
		c.RunID, c.Time = id, fromUnixNano(t)
		c.Latitude, c.Longitude, c.Altitude = orNaN(lat), orNaN(lon), orNaN(alt)
		if c.Values, err = storage.DecodeValues(vals); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SQLite stores NaN as NULL; these helpers make that explicit.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// The zero time is stored as 0.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
