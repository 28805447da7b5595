package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrilink/sourcing-service/internal/domain"
)

// AccountRepository defines persistence access for credential accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	MarkProvisioned(ctx context.Context, id string) error
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (email, password_hash, provisioned, seed_name, seed_contact, seed_description, seed_role)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		account.Email,
		account.PasswordHash,
		account.Provisioned,
		account.Seed.Name,
		account.Seed.Contact,
		account.Seed.Description,
		account.Seed.Role,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE accounts SET password_hash=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, email, password_hash, provisioned, seed_name, seed_contact, seed_description, seed_role, created_at, updated_at
        FROM accounts WHERE email=$1`

	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Provisioned,
		&account.Seed.Name,
		&account.Seed.Contact,
		&account.Seed.Description,
		&account.Seed.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) MarkProvisioned(ctx context.Context, id string) error {
	const query = `UPDATE accounts SET provisioned=TRUE, updated_at=NOW() WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
