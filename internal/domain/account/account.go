package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what kind of account a statement belongs to.
type Type string

const (
	TypeChecking   Type = "CHECKING"
	TypeCreditCard Type = "CREDIT_CARD"
	TypeMortgage   Type = "MORTGAGE"
	TypePaydayLoan Type = "PAYDAY_LOAN"
	TypeSavings    Type = "SAVINGS"
	TypeOther      Type = "OTHER"
)

// Account is a bank or card account statements are imported into.
type Account struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Institution string
	Type        Type
	IsActive    bool
	CreatedAt   time.Time
}

// Repository provides account lookup and lazy creation during imports.
type Repository interface {
	GetByID(ctx context.Context, userID, accountID uuid.UUID) (*Account, error)
	// GetOrCreateByName resolves an account by case-insensitive name,
	// creating it as OTHER when the owner has no account with that name.
	GetOrCreateByName(ctx context.Context, userID uuid.UUID, name string) (*Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Account, error)
}
