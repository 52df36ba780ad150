package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

// runInTx runs fn inside a transaction, committing on success and rolling
// back on any error. Record saves and grant reconciliation share one
// transaction so a failed reconcile never leaves a half-saved record.
func runInTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// normalizeAccess parses a submitted access level, defaulting to Private.
func normalizeAccess(raw string) (models.AccessLevel, error) {
	if raw == "" {
		return models.AccessPrivate, nil
	}
	access := models.AccessLevel(raw)
	if !access.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid access level %q", raw))
	}
	return access, nil
}
