package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

type grantStore interface {
	UserIDsForRecordTx(ctx context.Context, tx *sqlx.Tx, recordType, recordID string) ([]string, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, grant *models.PermissionGrant) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, recordType, recordID, userID string) error
	SharedRecordIDs(ctx context.Context, recordType, userID string) ([]string, error)
	HasGrant(ctx context.Context, recordType, recordID, userID string) (bool, error)
}

// PermissionService owns the sharing grants of a record and reconciles them
// against the user list submitted with a save. Reconcile always runs inside
// the transaction of the record save it accompanies, so a failure rolls back
// both the record and the grant changes.
type PermissionService struct {
	repo   grantStore
	logger *zap.Logger
}

// NewPermissionService constructs the service.
func NewPermissionService(repo grantStore, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{repo: repo, logger: logger}
}

// Reconcile brings the grant set of rec in line with submittedUserIDs and
// returns the applied diff. When the record is not Shared the submitted list
// is ignored and every existing grant is dropped. The owner and assignee are
// never stored as grants, even when submitted. Calling Reconcile twice with
// the same inputs yields an empty diff the second time.
func (s *PermissionService) Reconcile(ctx context.Context, tx *sqlx.Tx, rec models.Shareable, recordType string, submittedUserIDs []string) (models.PermissionDiff, error) {
	diff := models.PermissionDiff{}

	current, err := s.repo.UserIDsForRecordTx(ctx, tx, recordType, rec.RecordID())
	if err != nil {
		return diff, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing grants")
	}

	wanted := make(map[string]struct{})
	if rec.RecordAccess() == models.AccessShared {
		for _, id := range submittedUserIDs {
			if id == "" || id == rec.OwnerID() {
				continue
			}
			if assignee := rec.AssigneeID(); assignee != nil && *assignee == id {
				continue
			}
			wanted[id] = struct{}{}
		}
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	for id := range wanted {
		if _, ok := currentSet[id]; ok {
			continue
		}
		grant := &models.PermissionGrant{
			ID:         uuid.NewString(),
			UserID:     id,
			RecordType: recordType,
			RecordID:   rec.RecordID(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.repo.InsertTx(ctx, tx, grant); err != nil {
			return models.PermissionDiff{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add grant")
		}
		diff.Added = append(diff.Added, id)
	}

	for _, id := range current {
		if _, ok := wanted[id]; ok {
			continue
		}
		if err := s.repo.DeleteTx(ctx, tx, recordType, rec.RecordID(), id); err != nil {
			return models.PermissionDiff{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove grant")
		}
		diff.Removed = append(diff.Removed, id)
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)

	if !diff.Empty() {
		s.logger.Debug("grants reconciled",
			zap.String("record_type", recordType),
			zap.String("record_id", rec.RecordID()),
			zap.Int("added", len(diff.Added)),
			zap.Int("removed", len(diff.Removed)),
		)
	}
	return diff, nil
}

// SharedRecordIDs returns the ids of recordType records shared with userID,
// used to seed an AccessDecider for list rendering.
func (s *PermissionService) SharedRecordIDs(ctx context.Context, recordType, userID string) ([]string, error) {
	ids, err := s.repo.SharedRecordIDs(ctx, recordType, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shared record ids")
	}
	return ids, nil
}

// HasGrant reports whether a single record carries a grant for userID.
func (s *PermissionService) HasGrant(ctx context.Context, recordType, recordID, userID string) (bool, error) {
	ok, err := s.repo.HasGrant(ctx, recordType, recordID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grant")
	}
	return ok, nil
}
