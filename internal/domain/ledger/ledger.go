// Package ledger holds the persisted transaction records and the import
// audit trail. Rows are owner-scoped; the import pipeline is the only writer.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind carries the sign of a transaction. Amounts themselves are
// always non-negative.
type TransactionKind string

const (
	KindIncome  TransactionKind = "INCOME"
	KindExpense TransactionKind = "EXPENSE"
)

// ParseKind validates a user-supplied transaction kind.
func ParseKind(raw string) (TransactionKind, error) {
	switch TransactionKind(strings.ToUpper(strings.TrimSpace(raw))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	default:
		return "", fmt.Errorf("transaction_type must be INCOME or EXPENSE")
	}
}

// KindForAmount infers the kind from a signed amount: positive means income,
// zero or negative means expense.
func KindForAmount(signed decimal.Decimal) TransactionKind {
	if signed.IsPositive() {
		return KindIncome
	}
	return KindExpense
}

// Expense is one persisted ledger row.
type Expense struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	AccountID *uuid.UUID
	Title     string
	Amount    decimal.Decimal // non-negative, 2 decimal places
	Category  string
	Kind      TransactionKind
	Date      time.Time
	CreatedAt time.Time
}

// RowKey identifies a ledger row for duplicate detection. Two rows with the
// same key are considered the same transaction.
type RowKey struct {
	UserID    uuid.UUID
	AccountID *uuid.UUID
	Title     string
	Amount    decimal.Decimal
	Category  string
	Kind      TransactionKind
	Date      time.Time
}

// Key returns the duplicate-detection key for an expense.
func (e *Expense) Key() RowKey {
	return RowKey{
		UserID:    e.UserID,
		AccountID: e.AccountID,
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  e.Category,
		Kind:      e.Kind,
		Date:      e.Date,
	}
}

// SourceType records which upload path produced an import.
type SourceType string

const (
	SourceCSV SourceType = "CSV"
	SourcePDF SourceType = "PDF"
)

// ImportStatus is the outcome of a single import attempt.
type ImportStatus string

const (
	StatusImported         ImportStatus = "IMPORTED"
	StatusBlockedDuplicate ImportStatus = "BLOCKED_DUPLICATE"
)

// StatementImport is one audit record per file-import attempt, including
// attempts blocked by the file-level duplicate gate. Immutable once written.
type StatementImport struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AccountID     *uuid.UUID
	SourceType    SourceType
	Status        ImportStatus
	Filename      string
	FileHash      string // hex SHA-256 of the raw uploaded bytes
	StatementDate *time.Time
	RowsDetected  int
	RowsImported  int
	RowsSkipped   int
	Notes         string
	CreatedAt     time.Time
}
