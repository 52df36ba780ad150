package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/crm-api/internal/models"
)

// AccountRepository provides database access for accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, assigned_to, name, access, website, phone, deleted_at, created_at, updated_at`

// ListActive returns every non-deleted account, newest first.
func (r *AccountRepository) ListActive(ctx context.Context) ([]models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE deleted_at IS NULL ORDER BY created_at DESC`, accountColumns)
	var items []models.Account
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return items, nil
}

// GetByID fetches one account, including soft-deleted rows.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 LIMIT 1`, accountColumns)
	var item models.Account
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &item, nil
}

// NameTaken reports whether the owner already has a non-deleted account with
// this name, excluding excludeID. Uniqueness is scoped to live rows only so
// a deleted account's name can be reused.
func (r *AccountRepository) NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1 AND name = $2 AND deleted_at IS NULL AND id <> $3)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, ownerID, name, excludeID); err != nil {
		return false, fmt.Errorf("check account name: %w", err)
	}
	return taken, nil
}

// CreateTx inserts a new account within the caller's transaction.
func (r *AccountRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Account) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO accounts (id, user_id, assigned_to, name, access, website, phone, created_at, updated_at)
	VALUES (:id, :user_id, :assigned_to, :name, :access, :website, :phone, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateTx updates mutable fields within the caller's transaction.
func (r *AccountRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Account) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE accounts SET assigned_to = :assigned_to, name = :name, access = :access,
	website = :website, phone = :phone, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check account update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete stamps the tombstone.
func (r *AccountRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	return nil
}
