package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for ledger rows and import audits.
type Repository interface {
	// Exists reports whether a ledger row with the given duplicate key is
	// already persisted.
	Exists(ctx context.Context, key RowKey) (bool, error)

	// CommitImport inserts the given rows and the audit record in a single
	// transaction. Rows whose key already exists are skipped. The audit's
	// RowsImported is set to the inserted count and RowsSkipped is increased
	// by the duplicate count before it is written. Returns (inserted,
	// duplicates).
	CommitImport(ctx context.Context, rows []*Expense, audit *StatementImport) (int, int, error)

	// CreateAudit writes a standalone audit record (used for blocked
	// duplicates, which never carry rows).
	CreateAudit(ctx context.Context, audit *StatementImport) error

	// LatestImported returns the most recent IMPORTED audit for the owner and
	// file hash, or nil when the file has never been imported.
	LatestImported(ctx context.Context, userID uuid.UUID, fileHash string) (*StatementImport, error)

	// ListImports returns the owner's audit history, most recent first.
	ListImports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*StatementImport, error)

	// ShiftFutureDates moves rows dated after today+daysAhead back one year
	// (Feb 29 lands on Feb 28). Rows that would still be in the future are
	// left alone. Returns the number of rows updated.
	ShiftFutureDates(ctx context.Context, userID uuid.UUID, today time.Time, daysAhead int) (int64, error)
}
