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

// LeadRepository provides database access for leads.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

const leadColumns = `id, user_id, assigned_to, first_name, last_name, company, email, phone, access, status, deleted_at, created_at, updated_at`

// ListActive returns every non-deleted lead, newest first.
func (r *LeadRepository) ListActive(ctx context.Context) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE deleted_at IS NULL ORDER BY created_at DESC`, leadColumns)
	var items []models.Lead
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return items, nil
}

// GetByID fetches one lead, including soft-deleted rows.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1 LIMIT 1`, leadColumns)
	var item models.Lead
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return &item, nil
}

// CreateTx inserts a new lead within the caller's transaction.
func (r *LeadRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Lead) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO leads (id, user_id, assigned_to, first_name, last_name, company, email, phone, access, status, created_at, updated_at)
	VALUES (:id, :user_id, :assigned_to, :first_name, :last_name, :company, :email, :phone, :access, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// UpdateTx updates mutable fields within the caller's transaction.
func (r *LeadRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Lead) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leads SET assigned_to = :assigned_to, first_name = :first_name, last_name = :last_name,
	company = :company, email = :email, phone = :phone, access = :access, status = :status, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check lead update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete stamps the tombstone.
func (r *LeadRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE leads SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete lead: %w", err)
	}
	return nil
}
