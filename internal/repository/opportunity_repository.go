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

// OpportunityRepository provides database access for opportunities.
type OpportunityRepository struct {
	db *sqlx.DB
}

// NewOpportunityRepository constructs the repository.
func NewOpportunityRepository(db *sqlx.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

const opportunityColumns = `id, user_id, assigned_to, name, access, stage, amount, probability, closes_on, deleted_at, created_at, updated_at`

// ListActive returns every non-deleted opportunity, newest first. Visibility
// and filter narrowing happen in the service layer in one pass.
func (r *OpportunityRepository) ListActive(ctx context.Context) ([]models.Opportunity, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunities WHERE deleted_at IS NULL ORDER BY created_at DESC`, opportunityColumns)
	var items []models.Opportunity
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	return items, nil
}

// GetByID fetches one opportunity, including soft-deleted rows; callers
// decide how a tombstone surfaces.
func (r *OpportunityRepository) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunities WHERE id = $1 LIMIT 1`, opportunityColumns)
	var item models.Opportunity
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &item, nil
}

// CreateTx inserts a new opportunity within the caller's transaction.
func (r *OpportunityRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Opportunity) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO opportunities (id, user_id, assigned_to, name, access, stage, amount, probability, closes_on, created_at, updated_at)
	VALUES (:id, :user_id, :assigned_to, :name, :access, :stage, :amount, :probability, :closes_on, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create opportunity: %w", err)
	}
	return nil
}

// UpdateTx updates mutable fields within the caller's transaction.
func (r *OpportunityRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Opportunity) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE opportunities SET assigned_to = :assigned_to, name = :name, access = :access, stage = :stage,
	amount = :amount, probability = :probability, closes_on = :closes_on, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update opportunity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check opportunity update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete stamps the tombstone; the row stays behind for audit.
func (r *OpportunityRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE opportunities SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete opportunity: %w", err)
	}
	return nil
}
