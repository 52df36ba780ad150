package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

type opportunityRepository interface {
	ListActive(ctx context.Context) ([]models.Opportunity, error)
	GetByID(ctx context.Context, id string) (*models.Opportunity, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Opportunity) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Opportunity) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateOpportunityRequest holds payload for creating opportunities.
type CreateOpportunityRequest struct {
	Name        string     `json:"name" validate:"required"`
	Stage       string     `json:"stage" validate:"required"`
	Access      string     `json:"access"`
	AssignedTo  *string    `json:"assigned_to"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Probability int        `json:"probability" validate:"gte=0,lte=100"`
	ClosesOn    *time.Time `json:"closes_on"`
	SharedWith  []string   `json:"shared_with"`
}

// UpdateOpportunityRequest holds payload for updating opportunities.
type UpdateOpportunityRequest struct {
	Name        string     `json:"name" validate:"required"`
	Stage       string     `json:"stage" validate:"required"`
	Access      string     `json:"access"`
	AssignedTo  *string    `json:"assigned_to"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Probability int        `json:"probability" validate:"gte=0,lte=100"`
	ClosesOn    *time.Time `json:"closes_on"`
	SharedWith  []string   `json:"shared_with"`
}

// DeleteOutcome tells the caller where the list stands after a deletion.
type DeleteOutcome struct {
	Page        int  `json:"page"`
	PageChanged bool `json:"page_changed"`
}

// OpportunityService handles opportunity use-cases: CRUD with sharing
// reconciliation, the filtered index pipeline, and the sidebar tally.
type OpportunityService struct {
	db            *sqlx.DB
	repo          opportunityRepository
	perms         *PermissionService
	listing       *ListingService
	notifier      *ShareNotifier
	categories    models.CategoryList
	defaultFilter []string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewOpportunityService constructs the opportunity service.
func NewOpportunityService(db *sqlx.DB, repo opportunityRepository, perms *PermissionService, listing *ListingService, notifier *ShareNotifier, categories models.CategoryList, defaultFilter []string, validate *validator.Validate, logger *zap.Logger) *OpportunityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpportunityService{
		db:            db,
		repo:          repo,
		perms:         perms,
		listing:       listing,
		notifier:      notifier,
		categories:    categories,
		defaultFilter: defaultFilter,
		validator:     validate,
		logger:        logger,
	}
}

// Categories exposes the configured stage definitions for the view.
func (s *OpportunityService) Categories() models.CategoryList { return s.categories }

// List renders one page of the opportunities index for req.UserID.
func (s *OpportunityService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	req.View = ViewOpportunities
	candidates, decider, err := s.candidates(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.listing.Compose(ctx, req, candidates, decider, s.categories, s.defaultFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose opportunity list")
	}
	return result, nil
}

// ToggleFilter flips one stage in the user's filter session.
func (s *OpportunityService) ToggleFilter(ctx context.Context, userID, stage string) (*models.FilterState, error) {
	if !s.categories.Has(stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", stage))
	}
	state, err := s.listing.ToggleCategory(ctx, userID, ViewOpportunities, stage)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle stage filter")
	}
	return state, nil
}

// Get returns one opportunity the user may see. Records the user cannot see
// surface exactly like missing ones.
func (s *OpportunityService) Get(ctx context.Context, userID, id string) (*models.Opportunity, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "opportunity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load opportunity")
	}
	ok, err := recordVisible(ctx, s.perms, models.RecordTypeOpportunity, userID, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "opportunity not found")
	}
	return item, nil
}

// Create inserts an opportunity and reconciles its sharing grants inside
// one transaction.
func (s *OpportunityService) Create(ctx context.Context, userID string, req CreateOpportunityRequest) (*models.Opportunity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opportunity payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", req.Stage))
	}

	item := &models.Opportunity{
		UserID:      userID,
		AssignedTo:  req.AssignedTo,
		Name:        req.Name,
		Access:      access,
		Stage:       req.Stage,
		Amount:      req.Amount,
		Probability: req.Probability,
		ClosesOn:    req.ClosesOn,
	}

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeOpportunity, req.SharedWith)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create opportunity")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeOpportunity, *item, userID, diff)
	return item, nil
}

// Update saves an opportunity and reconciles its grants in one transaction.
func (s *OpportunityService) Update(ctx context.Context, userID, id string, req UpdateOpportunityRequest) (*models.Opportunity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opportunity payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", req.Stage))
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	item.AssignedTo = req.AssignedTo
	item.Name = req.Name
	item.Access = access
	item.Stage = req.Stage
	item.Amount = req.Amount
	item.Probability = req.Probability
	item.ClosesOn = req.ClosesOn

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeOpportunity, req.SharedWith)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "opportunity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update opportunity")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeOpportunity, *item, userID, diff)
	return item, nil
}

// Delete soft-deletes an opportunity and settles the user's list page.
// When the request came from the list itself the saved page rolls back if
// the deletion emptied it; arriving from anywhere else resets to page 1.
func (s *OpportunityService) Delete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete opportunity")
	}

	outcome := &DeleteOutcome{}
	if fromListView {
		page, changed, err := s.listing.OnRecordRemoved(ctx, userID, ViewOpportunities, countBefore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle list page")
		}
		outcome.Page = page
		outcome.PageChanged = changed
	} else {
		if err := s.listing.ResetPage(ctx, userID, ViewOpportunities); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset list page")
		}
		outcome.Page = 1
	}

	s.logger.Info("opportunity deleted",
		zap.String("opportunity_id", id),
		zap.String("user_id", userID),
		zap.String("name", item.Name),
	)
	return outcome, nil
}

// Filtered returns the user's full filtered set, unpaginated, for exports.
func (s *OpportunityService) Filtered(ctx context.Context, userID string) ([]models.Shareable, error) {
	candidates, decider, err := s.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := s.listing.State(ctx, userID, ViewOpportunities)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filter state")
	}
	return VisibleRecords(candidates, decider,
		CategoryPredicate(state.EffectiveCategories(s.defaultFilter)),
		QueryPredicate(state.Query),
	), nil
}

func (s *OpportunityService) candidates(ctx context.Context, userID string) ([]models.Shareable, AccessDecider, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, AccessDecider{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list opportunities")
	}
	shared, err := s.perms.SharedRecordIDs(ctx, models.RecordTypeOpportunity, userID)
	if err != nil {
		return nil, AccessDecider{}, err
	}
	candidates := make([]models.Shareable, len(items))
	for i, item := range items {
		candidates[i] = item
	}
	return candidates, NewAccessDecider(userID, shared), nil
}

func (s *OpportunityService) filteredCount(ctx context.Context, userID string) (int, error) {
	filtered, err := s.Filtered(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}

