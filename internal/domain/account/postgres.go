package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const getByIDQuery = `
	SELECT id, user_id, name, institution, account_type, is_active, created_at
	FROM accounts
	WHERE id = $1 AND user_id = $2`

func (r *PostgresRepository) GetByID(ctx context.Context, userID, accountID uuid.UUID) (*Account, error) {
	acct := &Account{}
	err := r.db.QueryRow(ctx, getByIDQuery, accountID, userID).Scan(
		&acct.ID, &acct.UserID, &acct.Name, &acct.Institution,
		&acct.Type, &acct.IsActive, &acct.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

const getByNameQuery = `
	SELECT id, user_id, name, institution, account_type, is_active, created_at
	FROM accounts
	WHERE user_id = $1 AND LOWER(name) = LOWER($2)`

const insertAccountQuery = `
	INSERT INTO accounts (id, user_id, name, account_type, is_active)
	VALUES ($1, $2, $3, $4, TRUE)
	RETURNING created_at`

func (r *PostgresRepository) GetOrCreateByName(ctx context.Context, userID uuid.UUID, name string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("account name is empty")
	}

	acct := &Account{}
	err := r.db.QueryRow(ctx, getByNameQuery, userID, name).Scan(
		&acct.ID, &acct.UserID, &acct.Name, &acct.Institution,
		&acct.Type, &acct.IsActive, &acct.CreatedAt,
	)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up account by name: %w", err)
	}

	acct = &Account{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     name,
		Type:     TypeOther,
		IsActive: true,
	}
	err = r.db.QueryRow(ctx, insertAccountQuery, acct.ID, userID, name, acct.Type).Scan(&acct.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acct, nil
}

const listByUserQuery = `
	SELECT id, user_id, name, institution, account_type, is_active, created_at
	FROM accounts
	WHERE user_id = $1
	ORDER BY name`

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Account, error) {
	rows, err := r.db.Query(ctx, listByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		acct := &Account{}
		err := rows.Scan(
			&acct.ID, &acct.UserID, &acct.Name, &acct.Institution,
			&acct.Type, &acct.IsActive, &acct.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}
