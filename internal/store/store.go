// Package store persists emitted records into PostgreSQL.
//
// Records are buffered per run and written with COPY in batches, so a run
// never holds more than one batch in memory. Each row carries the run id,
// the provenance columns and the full record as jsonb.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/comexcl/internal/tabular"
)

// ErrPersist wraps every database failure of a Writer.
var ErrPersist = errors.New("persist records")

// DefaultBatchSize is the number of rows per COPY.
const DefaultBatchSize = 1000

// Table receives the records.
const Table = "import_records"

var columns = []string{"run_id", "country_code", "ano_ref", "mes_ref", "payload"}

const createTableSQL = `CREATE TABLE IF NOT EXISTS import_records (
	id           bigserial PRIMARY KEY,
	run_id       uuid        NOT NULL,
	country_code text        NOT NULL,
	ano_ref      integer     NOT NULL,
	mes_ref      integer     NOT NULL,
	payload      jsonb       NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS import_records_period_idx ON import_records (country_code, ano_ref, mes_ref);`

const deleteRunSQL = `DELETE FROM import_records WHERE run_id = $1`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Open connects a pool to url and verifies it with a ping.
func Open(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", databaseName(url))
	return pool, nil
}

func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// EnsureTable creates the records table and its index when missing.
func EnsureTable(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrPersist, err)
	}
	return nil
}

// Writer buffers the records of one run and copies them in batches. It is
// not safe for concurrent use.
type Writer struct {
	db        DB
	runID     pgtype.UUID
	batchSize int
	rows      [][]any
	written   int64
}

// NewWriter creates a writer tagging rows with runID.
func NewWriter(db DB, runID uuid.UUID, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{
		db:        db,
		runID:     pgtype.UUID{Bytes: runID, Valid: true},
		batchSize: batchSize,
		rows:      make([][]any, 0, batchSize),
	}
}

// Add buffers rec, copying the batch once it is full.
func (w *Writer) Add(ctx context.Context, rec tabular.Record) error {
	payload, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrPersist, err)
	}

	p := rec.Provenance()
	w.rows = append(w.rows, []any{w.runID, p.CountryCode, int32(p.Year), int32(p.Month), payload})
	if len(w.rows) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush copies the buffered rows. Flushing an empty buffer is a no-op.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.rows) == 0 {
		return nil
	}

	n, err := w.db.CopyFrom(ctx, pgx.Identifier{Table}, columns, pgx.CopyFromRows(w.rows))
	if err != nil {
		return fmt.Errorf("%w: copy %d rows: %v", ErrPersist, len(w.rows), err)
	}

	w.written += n
	w.rows = w.rows[:0]
	slog.Debug("records copied", "rows", n, "total", w.written)
	return nil
}

// Discard drops buffered rows and deletes every row already copied for the
// run. Runs that fail call it so no partial import stays behind.
func (w *Writer) Discard(ctx context.Context) error {
	w.rows = w.rows[:0]
	if w.written == 0 {
		return nil
	}
	n, err := DeleteRun(ctx, w.db, w.runID)
	if err != nil {
		return err
	}
	slog.Info("discarded persisted rows of failed run", "rows", n)
	w.written = 0
	return nil
}

// DeleteRun removes the rows of one run and returns how many were deleted.
func DeleteRun(ctx context.Context, db DB, runID pgtype.UUID) (int64, error) {
	tag, err := db.Exec(ctx, deleteRunSQL, runID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete run: %v", ErrPersist, err)
	}
	return tag.RowsAffected(), nil
}
