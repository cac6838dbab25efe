// Package store persists validation reports in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joyfill/joydoc"
	"go.uber.org/zap"
)

// reportPool is the subset of *pgxpool.Pool the store uses, so tests can use pgxmock.
type reportPool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Report is the persisted outcome of one validation.
type Report struct {
	ID             uuid.UUID          `json:"id"`
	Source         string             `json:"source"`
	DocumentID     string             `json:"documentId,omitempty"`
	Valid          bool               `json:"valid"`
	ViolationCount int                `json:"violationCount"`
	WarningCount   int                `json:"warningCount"`
	Violations     []joydoc.Violation `json:"violations"`
	Warnings       []joydoc.Warning   `json:"warnings,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// NewReport builds a report for result with a time-ordered id.
func NewReport(source, documentID string, result *joydoc.ValidationResult) (*Report, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, joydoc.NewInternalError("failed to generate report id", err)
	}
	return &Report{
		ID:             id,
		Source:         source,
		DocumentID:     documentID,
		Valid:          result.Valid,
		ViolationCount: len(result.Violations),
		WarningCount:   len(result.Warnings),
		Violations:     result.Violations,
		Warnings:       result.Warnings,
	}, nil
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReportStore reads and writes reports in one table.
type ReportStore struct {
	pool    reportPool
	name    string
	table   string
	logger  *zap.Logger
	breaker *Breaker
	nowFunc func() time.Time
}

// NewReportStore creates a store on pool. table must be a plain identifier.
func NewReportStore(pool reportPool, table string, logger *zap.Logger) (*ReportStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, joydoc.NewConfigError("store.table", fmt.Sprintf("%q is not a valid table name", table))
	}
	if logger == nil {
		logger = zap.L()
	}
	return &ReportStore{
		pool:    pool,
		name:    table,
		table:   pgx.Identifier{table}.Sanitize(),
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// WithBreaker guards Save and SaveBatch with b. While b is open, writes fail
// fast without touching the database.
func (s *ReportStore) WithBreaker(b *Breaker) *ReportStore {
	s.breaker = b
	return s
}

func (s *ReportStore) checkBreaker() error {
	if s.breaker.IsOpen() {
		return joydoc.NewError(joydoc.ErrorTypeStore, joydoc.ErrCodeCircuitOpen,
			"report store is unavailable after repeated failures")
	}
	return nil
}

// SchemaStatements returns the DDL that creates the report table.
func (s *ReportStore) SchemaStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY,
  source TEXT NOT NULL,
  document_id TEXT,
  valid BOOLEAN NOT NULL,
  violation_count INTEGER NOT NULL,
  warning_count INTEGER NOT NULL,
  violations JSONB NOT NULL,
  warnings JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at DESC)`,
			pgx.Identifier{s.indexName()}.Sanitize(), s.table),
	}
}

func (s *ReportStore) indexName() string {
	// s.table is quoted; strip the quotes for the derived index name.
	return s.table[1:len(s.table)-1] + "_created_at_idx"
}

// EnsureSchema creates the report table and its index when missing.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.SchemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return joydoc.NewStoreError("failed to create report table", err)
		}
	}
	return nil
}

// Save inserts r. A zero CreatedAt is set to the current time.
func (s *ReportStore) Save(ctx context.Context, r *Report) error {
	if err := s.checkBreaker(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.nowFunc().UTC()
	}
	violations, err := json.Marshal(nonNil(r.Violations))
	if err != nil {
		return joydoc.NewStoreError("failed to encode violations", err)
	}
	warnings, err := json.Marshal(nonNil(r.Warnings))
	if err != nil {
		return joydoc.NewStoreError("failed to encode warnings", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, source, document_id, valid, violation_count, warning_count, violations, warnings, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, s.table)
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Source, r.DocumentID, r.Valid, r.ViolationCount, r.WarningCount,
		violations, warnings, r.CreatedAt,
	)
	s.breaker.record(err)
	if err != nil {
		return joydoc.NewStoreError("failed to save report", err).WithDetail("id", r.ID.String())
	}

	s.logger.Debug("report saved",
		zap.String("id", r.ID.String()),
		zap.String("source", r.Source),
		zap.Bool("valid", r.Valid),
	)
	return nil
}

var copyColumns = []string{
	"id", "source", "document_id", "valid", "violation_count", "warning_count",
	"violations", "warnings", "created_at",
}

// SaveBatch bulk inserts reports with COPY, chunkSize rows per statement.
// It returns the number of rows written before any error.
func (s *ReportStore) SaveBatch(ctx context.Context, reports []*Report, chunkSize int) (int64, error) {
	if err := s.checkBreaker(); err != nil {
		return 0, err
	}
	if chunkSize <= 0 {
		chunkSize = len(reports)
	}
	now := s.nowFunc().UTC()

	var written int64
	for start := 0; start < len(reports); start += chunkSize {
		end := min(start+chunkSize, len(reports))
		rows := make([][]any, 0, end-start)
		for _, r := range reports[start:end] {
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			violations, err := json.Marshal(nonNil(r.Violations))
			if err != nil {
				return written, joydoc.NewStoreError("failed to encode violations", err)
			}
			warnings, err := json.Marshal(nonNil(r.Warnings))
			if err != nil {
				return written, joydoc.NewStoreError("failed to encode warnings", err)
			}
			rows = append(rows, []any{
				r.ID, r.Source, r.DocumentID, r.Valid, r.ViolationCount, r.WarningCount,
				violations, warnings, r.CreatedAt,
			})
		}

		n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.name}, copyColumns, pgx.CopyFromRows(rows))
		s.breaker.record(err)
		written += n
		if err != nil {
			return written, joydoc.NewStoreError("failed to copy reports", err).WithDetail("offset", start)
		}
	}

	s.logger.Debug("reports copied", zap.Int64("rows", written))
	return written, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

const reportColumns = `id, source, document_id, valid, violation_count, warning_count, violations, warnings, created_at`

// Get returns the report with the given id.
func (s *ReportStore) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, reportColumns, s.table)
	r, err := scanReport(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, joydoc.NewNotFoundError(joydoc.ErrCodeReportNotFound,
				fmt.Sprintf("report %s not found", id))
		}
		return nil, joydoc.NewStoreError("failed to load report", err)
	}
	return r, nil
}

// ListRecent returns up to limit reports, newest first.
func (s *ReportStore) ListRecent(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1`, reportColumns, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, joydoc.NewStoreError("failed to list reports", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, joydoc.NewStoreError("failed to scan report", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, joydoc.NewStoreError("failed to list reports", err)
	}
	return reports, nil
}

// Health pings the database and runs a trivial query. timeout may be 0 for
// the 5s default.
func (s *ReportStore) Health(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return joydoc.NewError(joydoc.ErrorTypeStore, joydoc.ErrCodeConnectionFailed, "postgres ping failed").WithCause(err)
	}
	if _, err := s.pool.Exec(ctx, "SELECT 1"); err != nil {
		return joydoc.NewError(joydoc.ErrorTypeStore, joydoc.ErrCodeConnectionFailed, "postgres simple query failed").WithCause(err)
	}
	return nil
}

func scanReport(row pgx.Row) (*Report, error) {
	var (
		r          Report
		documentID *string
		violations []byte
		warnings   []byte
	)
	if err := row.Scan(&r.ID, &r.Source, &documentID, &r.Valid, &r.ViolationCount, &r.WarningCount,
		&violations, &warnings, &r.CreatedAt); err != nil {
		return nil, err
	}
	if documentID != nil {
		r.DocumentID = *documentID
	}
	if err := json.Unmarshal(violations, &r.Violations); err != nil {
		return nil, fmt.Errorf("decode violations: %w", err)
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &r.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if len(r.Warnings) == 0 {
		r.Warnings = nil
	}
	return &r, nil
}
