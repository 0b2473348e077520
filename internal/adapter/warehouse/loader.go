package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/pipeline"
)

// maxRowsPerInsert caps one multi-row INSERT; SQL Server rejects more than
// 1000 row value expressions.
const maxRowsPerInsert = 1000

// Loader appends CME rows to {schema}.coronal_mass_ejection.
// It implements pipeline.Loader.
type Loader struct {
	db        *sql.DB
	dialect   Dialect
	schema    string
	chunkSize int
	logger    *slog.Logger
}

// Open validates cfg and opens a connection pool for its dialect. The pool
// connects lazily; call Ping to check reachability up front.
func Open(cfg Config, logger *slog.Logger) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, dsn, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", dialect.Name, err)
	}
	return NewLoader(db, dialect, cfg.Schema, logger), nil
}

// NewLoader wraps an existing pool. schema must be a plain identifier.
func NewLoader(db *sql.DB, dialect Dialect, schema string, logger *slog.Logger) *Loader {
	chunk := dialect.MaxParams / len(columns)
	if chunk > maxRowsPerInsert {
		chunk = maxRowsPerInsert
	}
	return &Loader{
		db:        db,
		dialect:   dialect,
		schema:    schema,
		chunkSize: chunk,
		logger:    logger,
	}
}

// Table returns the quoted, schema-qualified target table.
func (l *Loader) Table() string {
	return l.dialect.Quote(l.schema) + "." + l.dialect.Quote(TableName)
}

// Ping checks that the warehouse accepts connections.
func (l *Loader) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s warehouse: %w", l.dialect.Name, err)
	}
	return nil
}

// EnsureTable creates the target table when it does not exist yet.
func (l *Loader) EnsureTable(ctx context.Context) error {
	stmt := l.dialect.createTable(l.Table(), l.dialect.columnDefs())
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", l.Table(), err)
	}
	l.logger.Info("warehouse table ready", "table", l.Table())
	return nil
}

// Load stamps every record with date and appends the batch in one
// transaction. An empty batch issues no statements. Rows are never updated
// or deleted.
func (l *Loader) Load(ctx context.Context, records []domain.CMERecord, date domain.ProcessDate) (pipeline.LoadResult, error) {
	result := pipeline.LoadResult{Table: l.Table(), ProcessDate: date.String()}
	if len(records) == 0 {
		l.logger.Info("no records to load", "table", result.Table)
		return result, nil
	}

	rows := domain.StampProcessDate(records, date)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin append to %s: %w", result.Table, err)
	}

	for start := 0; start < len(rows); start += l.chunkSize {
		end := min(start+l.chunkSize, len(rows))
		query, args := l.insertStatement(rows[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return result, fmt.Errorf("append rows %d-%d to %s: %w", start, end-1, result.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit append to %s: %w", result.Table, err)
	}

	result.Rows = len(rows)
	l.logger.Info("rows appended", "table", result.Table, "rows", result.Rows)
	return result, nil
}

// Close releases the connection pool.
func (l *Loader) Close() error {
	return l.db.Close()
}

func (l *Loader) insertStatement(rows []domain.WarehouseRow) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(l.Table())
	b.WriteString(" (")
	b.WriteString(l.dialect.columnList())
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(l.dialect.Placeholder(len(args) + j + 1))
		}
		b.WriteString(")")
		args = append(args, rowArgs(r)...)
	}
	return b.String(), args
}

var _ pipeline.Loader = (*Loader)(nil)
