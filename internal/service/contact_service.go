package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

type contactRepository interface {
	ListActive(ctx context.Context) ([]models.Contact, error)
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Contact) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Contact) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateContactRequest holds payload for creating contacts.
type CreateContactRequest struct {
	FirstName  string   `json:"first_name" validate:"required"`
	LastName   string   `json:"last_name" validate:"required"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone"`
	AccountID  *string  `json:"account_id"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// UpdateContactRequest holds payload for updating contacts.
type UpdateContactRequest struct {
	FirstName  string   `json:"first_name" validate:"required"`
	LastName   string   `json:"last_name" validate:"required"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone"`
	AccountID  *string  `json:"account_id"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// ContactService handles contact use-cases. Like accounts, contacts carry
// no category sidebar.
type ContactService struct {
	db        *sqlx.DB
	repo      contactRepository
	perms     *PermissionService
	listing   *ListingService
	notifier  *ShareNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContactService constructs the contact service.
func NewContactService(db *sqlx.DB, repo contactRepository, perms *PermissionService, listing *ListingService, notifier *ShareNotifier, validate *validator.Validate, logger *zap.Logger) *ContactService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		db:        db,
		repo:      repo,
		perms:     perms,
		listing:   listing,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// List renders one page of the contacts index for req.UserID.
func (s *ContactService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	req.View = ViewContacts
	req.WithSidebar = false
	candidates, decider, err := s.candidates(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.listing.Compose(ctx, req, candidates, decider, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose contact list")
	}
	return result, nil
}

// Get returns one contact the user may see.
func (s *ContactService) Get(ctx context.Context, userID, id string) (*models.Contact, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contact")
	}
	ok, err := recordVisible(ctx, s.perms, models.RecordTypeContact, userID, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
	}
	return item, nil
}

// Create inserts a contact and reconciles its grants in one transaction.
func (s *ContactService) Create(ctx context.Context, userID string, req CreateContactRequest) (*models.Contact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}

	item := &models.Contact{
		UserID:     userID,
		AssignedTo: req.AssignedTo,
		AccountID:  req.AccountID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Access:     access,
	}

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeContact, req.SharedWith)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contact")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeContact, *item, userID, diff)
	return item, nil
}

// Update saves a contact and reconciles its grants in one transaction.
func (s *ContactService) Update(ctx context.Context, userID, id string, req UpdateContactRequest) (*models.Contact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	item.AssignedTo = req.AssignedTo
	item.AccountID = req.AccountID
	item.FirstName = req.FirstName
	item.LastName = req.LastName
	item.Email = req.Email
	item.Phone = req.Phone
	item.Access = access

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeContact, req.SharedWith)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contact")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeContact, *item, userID, diff)
	return item, nil
}

// Delete soft-deletes a contact and settles the user's list page.
func (s *ContactService) Delete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contact")
	}

	outcome := &DeleteOutcome{}
	if fromListView {
		page, changed, err := s.listing.OnRecordRemoved(ctx, userID, ViewContacts, countBefore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle list page")
		}
		outcome.Page = page
		outcome.PageChanged = changed
	} else {
		if err := s.listing.ResetPage(ctx, userID, ViewContacts); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset list page")
		}
		outcome.Page = 1
	}
	return outcome, nil
}

// Filtered returns the user's full filtered set, unpaginated, for exports.
func (s *ContactService) Filtered(ctx context.Context, userID string) ([]models.Shareable, error) {
	candidates, decider, err := s.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := s.listing.State(ctx, userID, ViewContacts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filter state")
	}
	return VisibleRecords(candidates, decider, QueryPredicate(state.Query)), nil
}

func (s *ContactService) candidates(ctx context.Context, userID string) ([]models.Shareable, AccessDecider, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, AccessDecider{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contacts")
	}
	shared, err := s.perms.SharedRecordIDs(ctx, models.RecordTypeContact, userID)
	if err != nil {
		return nil, AccessDecider{}, err
	}
	candidates := make([]models.Shareable, len(items))
	for i, item := range items {
		candidates[i] = item
	}
	return candidates, NewAccessDecider(userID, shared), nil
}

func (s *ContactService) filteredCount(ctx context.Context, userID string) (int, error) {
	filtered, err := s.Filtered(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}
