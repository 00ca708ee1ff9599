package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a ledger repository backed by the given pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const existsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM expenses
		WHERE user_id = $1
		  AND account_id IS NOT DISTINCT FROM $2
		  AND title = $3
		  AND amount = $4
		  AND category = $5
		  AND transaction_type = $6
		  AND date = $7
	)`

const insertExpenseQuery = `
	INSERT INTO expenses (id, user_id, account_id, title, amount, category, transaction_type, date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertAuditQuery = `
	INSERT INTO statement_imports
		(id, user_id, account_id, source_type, status, filename, file_hash,
		 statement_date, rows_detected, rows_imported, rows_skipped, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at`

// Exists implements the row-level duplicate check.
func (r *PostgresRepository) Exists(ctx context.Context, key RowKey) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, existsQuery,
		key.UserID, key.AccountID, key.Title, key.Amount.StringFixed(2),
		key.Category, key.Kind, key.Date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate row: %w", err)
	}
	return exists, nil
}

// CommitImport inserts non-duplicate rows plus the audit record atomically.
func (r *PostgresRepository) CommitImport(ctx context.Context, rows []*Expense, audit *StatementImport) (int, int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	duplicates := 0
	for _, row := range rows {
		key := row.Key()
		var exists bool
		err := tx.QueryRow(ctx, existsQuery,
			key.UserID, key.AccountID, key.Title, key.Amount.StringFixed(2),
			key.Category, key.Kind, key.Date,
		).Scan(&exists)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to check for duplicate row: %w", err)
		}
		if exists {
			duplicates++
			continue
		}

		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		_, err = tx.Exec(ctx, insertExpenseQuery,
			row.ID, row.UserID, row.AccountID, row.Title,
			row.Amount.StringFixed(2), row.Category, row.Kind, row.Date,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert ledger row: %w", err)
		}
		inserted++
	}

	audit.RowsImported = inserted
	audit.RowsSkipped += duplicates
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, insertAuditQuery,
		audit.ID, audit.UserID, audit.AccountID, audit.SourceType, audit.Status,
		audit.Filename, audit.FileHash, audit.StatementDate,
		audit.RowsDetected, audit.RowsImported, audit.RowsSkipped, audit.Notes,
	).Scan(&audit.CreatedAt)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to write import audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, duplicates, nil
}

// CreateAudit writes a single audit record outside a row commit.
func (r *PostgresRepository) CreateAudit(ctx context.Context, audit *StatementImport) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, insertAuditQuery,
		audit.ID, audit.UserID, audit.AccountID, audit.SourceType, audit.Status,
		audit.Filename, audit.FileHash, audit.StatementDate,
		audit.RowsDetected, audit.RowsImported, audit.RowsSkipped, audit.Notes,
	).Scan(&audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write import audit: %w", err)
	}
	return nil
}

const latestImportedQuery = `
	SELECT id, user_id, account_id, source_type, status, filename, file_hash,
	       statement_date, rows_detected, rows_imported, rows_skipped, notes, created_at
	FROM statement_imports
	WHERE user_id = $1 AND file_hash = $2 AND status = $3
	ORDER BY created_at DESC
	LIMIT 1`

// LatestImported returns the most recent successful import of a file hash.
func (r *PostgresRepository) LatestImported(ctx context.Context, userID uuid.UUID, fileHash string) (*StatementImport, error) {
	imp := &StatementImport{}
	err := r.db.QueryRow(ctx, latestImportedQuery, userID, fileHash, StatusImported).Scan(
		&imp.ID, &imp.UserID, &imp.AccountID, &imp.SourceType, &imp.Status,
		&imp.Filename, &imp.FileHash, &imp.StatementDate,
		&imp.RowsDetected, &imp.RowsImported, &imp.RowsSkipped, &imp.Notes, &imp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up prior import: %w", err)
	}
	return imp, nil
}

const listImportsQuery = `
	SELECT id, user_id, account_id, source_type, status, filename, file_hash,
	       statement_date, rows_detected, rows_imported, rows_skipped, notes, created_at
	FROM statement_imports
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

// ListImports returns the import history for an owner, most recent first.
func (r *PostgresRepository) ListImports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*StatementImport, error) {
	rows, err := r.db.Query(ctx, listImportsQuery, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var imports []*StatementImport
	for rows.Next() {
		imp := &StatementImport{}
		err := rows.Scan(
			&imp.ID, &imp.UserID, &imp.AccountID, &imp.SourceType, &imp.Status,
			&imp.Filename, &imp.FileHash, &imp.StatementDate,
			&imp.RowsDetected, &imp.RowsImported, &imp.RowsSkipped, &imp.Notes, &imp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		imports = append(imports, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import rows: %w", err)
	}
	return imports, nil
}

const shiftFutureDatesQuery = `
	UPDATE expenses
	SET date = (date - INTERVAL '1 year')::date
	WHERE user_id = $1
	  AND date > $2
	  AND (date - INTERVAL '1 year')::date <= $3`

// ShiftFutureDates re-dates clearly future rows back one year. Postgres
// interval arithmetic maps Feb 29 to Feb 28 on non-leap years.
func (r *PostgresRepository) ShiftFutureDates(ctx context.Context, userID uuid.UUID, today time.Time, daysAhead int) (int64, error) {
	threshold := today.AddDate(0, 0, daysAhead)
	tag, err := r.db.Exec(ctx, shiftFutureDatesQuery, userID, threshold, today)
	if err != nil {
		return 0, fmt.Errorf("failed to shift future-dated rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
