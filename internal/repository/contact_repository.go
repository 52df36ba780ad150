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

// ContactRepository provides database access for contacts.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs the repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `id, user_id, assigned_to, account_id, first_name, last_name, email, phone, access, deleted_at, created_at, updated_at`

// ListActive returns every non-deleted contact, newest first.
func (r *ContactRepository) ListActive(ctx context.Context) ([]models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE deleted_at IS NULL ORDER BY created_at DESC`, contactColumns)
	var items []models.Contact
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return items, nil
}

// GetByID fetches one contact, including soft-deleted rows.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE id = $1 LIMIT 1`, contactColumns)
	var item models.Contact
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &item, nil
}

// CreateTx inserts a new contact within the caller's transaction.
func (r *ContactRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Contact) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO contacts (id, user_id, assigned_to, account_id, first_name, last_name, email, phone, access, created_at, updated_at)
	VALUES (:id, :user_id, :assigned_to, :account_id, :first_name, :last_name, :email, :phone, :access, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

// UpdateTx updates mutable fields within the caller's transaction.
func (r *ContactRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Contact) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contacts SET assigned_to = :assigned_to, account_id = :account_id, first_name = :first_name,
	last_name = :last_name, email = :email, phone = :phone, access = :access, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check contact update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete stamps the tombstone.
func (r *ContactRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE contacts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete contact: %w", err)
	}
	return nil
}
