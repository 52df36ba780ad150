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

type accountRepository interface {
	ListActive(ctx context.Context) ([]models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Account) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Account) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateAccountRequest holds payload for creating accounts.
type CreateAccountRequest struct {
	Name       string   `json:"name" validate:"required"`
	Website    string   `json:"website"`
	Phone      string   `json:"phone"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// UpdateAccountRequest holds payload for updating accounts.
type UpdateAccountRequest struct {
	Name       string   `json:"name" validate:"required"`
	Website    string   `json:"website"`
	Phone      string   `json:"phone"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// AccountService handles account use-cases. Accounts have no category
// sidebar; their index narrows only by visibility and the text query.
// Account names are unique per owner among live rows.
type AccountService struct {
	db        *sqlx.DB
	repo      accountRepository
	perms     *PermissionService
	listing   *ListingService
	notifier  *ShareNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs the account service.
func NewAccountService(db *sqlx.DB, repo accountRepository, perms *PermissionService, listing *ListingService, notifier *ShareNotifier, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		db:        db,
		repo:      repo,
		perms:     perms,
		listing:   listing,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// List renders one page of the accounts index for req.UserID.
func (s *AccountService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	req.View = ViewAccounts
	req.WithSidebar = false
	candidates, decider, err := s.candidates(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.listing.Compose(ctx, req, candidates, decider, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose account list")
	}
	return result, nil
}

// Get returns one account the user may see.
func (s *AccountService) Get(ctx context.Context, userID, id string) (*models.Account, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	ok, err := recordVisible(ctx, s.perms, models.RecordTypeAccount, userID, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	return item, nil
}

// Create inserts an account after checking the per-owner name uniqueness,
// then reconciles grants in the same transaction.
func (s *AccountService) Create(ctx context.Context, userID string, req CreateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.NameTaken(ctx, userID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "account name already used")
	}

	item := &models.Account{
		UserID:     userID,
		AssignedTo: req.AssignedTo,
		Name:       req.Name,
		Access:     access,
		Website:    req.Website,
		Phone:      req.Phone,
	}

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeAccount, req.SharedWith)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeAccount, *item, userID, diff)
	return item, nil
}

// Update saves an account and reconciles its grants in one transaction.
func (s *AccountService) Update(ctx context.Context, userID, id string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.NameTaken(ctx, item.UserID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "account name already used")
	}

	item.AssignedTo = req.AssignedTo
	item.Name = req.Name
	item.Access = access
	item.Website = req.Website
	item.Phone = req.Phone

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeAccount, req.SharedWith)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeAccount, *item, userID, diff)
	return item, nil
}

// Delete soft-deletes an account and settles the user's list page. The
// name uniqueness check only scans live rows, so the deleted account's
// name becomes available again.
func (s *AccountService) Delete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}

	outcome := &DeleteOutcome{}
	if fromListView {
		page, changed, err := s.listing.OnRecordRemoved(ctx, userID, ViewAccounts, countBefore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle list page")
		}
		outcome.Page = page
		outcome.PageChanged = changed
	} else {
		if err := s.listing.ResetPage(ctx, userID, ViewAccounts); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset list page")
		}
		outcome.Page = 1
	}
	return outcome, nil
}

// Filtered returns the user's full filtered set, unpaginated, for exports.
func (s *AccountService) Filtered(ctx context.Context, userID string) ([]models.Shareable, error) {
	candidates, decider, err := s.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := s.listing.State(ctx, userID, ViewAccounts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filter state")
	}
	return VisibleRecords(candidates, decider, QueryPredicate(state.Query)), nil
}

func (s *AccountService) candidates(ctx context.Context, userID string) ([]models.Shareable, AccessDecider, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, AccessDecider{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}
	shared, err := s.perms.SharedRecordIDs(ctx, models.RecordTypeAccount, userID)
	if err != nil {
		return nil, AccessDecider{}, err
	}
	candidates := make([]models.Shareable, len(items))
	for i, item := range items {
		candidates[i] = item
	}
	return candidates, NewAccessDecider(userID, shared), nil
}

func (s *AccountService) filteredCount(ctx context.Context, userID string) (int, error) {
	filtered, err := s.Filtered(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}
