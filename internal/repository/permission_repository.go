package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/crm-api/internal/models"
)

// PermissionRepository persists sharing grants in the polymorphic
// permissions table.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// UserIDsForRecord returns every user id granted on the record.
func (r *PermissionRepository) UserIDsForRecord(ctx context.Context, recordType, recordID string) ([]string, error) {
	const query = `SELECT user_id FROM permissions WHERE record_type = $1 AND record_id = $2 ORDER BY user_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, recordType, recordID); err != nil {
		return nil, fmt.Errorf("list grant user ids: %w", err)
	}
	return ids, nil
}

// UserIDsForRecordTx is UserIDsForRecord inside an open transaction, used by
// reconcile so the read and the writes share one snapshot.
func (r *PermissionRepository) UserIDsForRecordTx(ctx context.Context, tx *sqlx.Tx, recordType, recordID string) ([]string, error) {
	const query = `SELECT user_id FROM permissions WHERE record_type = $1 AND record_id = $2 ORDER BY user_id`
	var ids []string
	if err := tx.SelectContext(ctx, &ids, query, recordType, recordID); err != nil {
		return nil, fmt.Errorf("list grant user ids: %w", err)
	}
	return ids, nil
}

// SharedRecordIDs returns the ids of recordType records shared with userID.
func (r *PermissionRepository) SharedRecordIDs(ctx context.Context, recordType, userID string) ([]string, error) {
	const query = `SELECT record_id FROM permissions WHERE record_type = $1 AND user_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, recordType, userID); err != nil {
		return nil, fmt.Errorf("list shared record ids: %w", err)
	}
	return ids, nil
}

// HasGrant reports whether the (record, user) grant exists.
func (r *PermissionRepository) HasGrant(ctx context.Context, recordType, recordID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM permissions WHERE record_type = $1 AND record_id = $2 AND user_id = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, recordType, recordID, userID); err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

// InsertTx adds one grant within the caller's transaction.
func (r *PermissionRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, grant *models.PermissionGrant) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permissions (id, user_id, record_type, record_id, created_at)
	VALUES (:id, :user_id, :record_type, :record_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// DeleteTx removes one grant within the caller's transaction.
func (r *PermissionRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, recordType, recordID, userID string) error {
	const query = `DELETE FROM permissions WHERE record_type = $1 AND record_id = $2 AND user_id = $3`
	if _, err := tx.ExecContext(ctx, query, recordType, recordID, userID); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}
