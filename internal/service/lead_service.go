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

type leadRepository interface {
	ListActive(ctx context.Context) ([]models.Lead, error)
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Lead) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Lead) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateLeadRequest holds payload for creating leads.
type CreateLeadRequest struct {
	FirstName  string   `json:"first_name" validate:"required"`
	LastName   string   `json:"last_name" validate:"required"`
	Company    string   `json:"company"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone"`
	Status     string   `json:"status" validate:"required"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// UpdateLeadRequest holds payload for updating leads.
type UpdateLeadRequest struct {
	FirstName  string   `json:"first_name" validate:"required"`
	LastName   string   `json:"last_name" validate:"required"`
	Company    string   `json:"company"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone"`
	Status     string   `json:"status" validate:"required"`
	Access     string   `json:"access"`
	AssignedTo *string  `json:"assigned_to"`
	SharedWith []string `json:"shared_with"`
}

// LeadService handles lead use-cases.
type LeadService struct {
	db            *sqlx.DB
	repo          leadRepository
	perms         *PermissionService
	listing       *ListingService
	notifier      *ShareNotifier
	categories    models.CategoryList
	defaultFilter []string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewLeadService constructs the lead service.
func NewLeadService(db *sqlx.DB, repo leadRepository, perms *PermissionService, listing *ListingService, notifier *ShareNotifier, categories models.CategoryList, defaultFilter []string, validate *validator.Validate, logger *zap.Logger) *LeadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
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

// Categories exposes the configured status definitions for the view.
func (s *LeadService) Categories() models.CategoryList { return s.categories }

// List renders one page of the leads index for req.UserID.
func (s *LeadService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	req.View = ViewLeads
	candidates, decider, err := s.candidates(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.listing.Compose(ctx, req, candidates, decider, s.categories, s.defaultFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose lead list")
	}
	return result, nil
}

// ToggleFilter flips one status in the user's filter session.
func (s *LeadService) ToggleFilter(ctx context.Context, userID, status string) (*models.FilterState, error) {
	if !s.categories.Has(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	state, err := s.listing.ToggleCategory(ctx, userID, ViewLeads, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle status filter")
	}
	return state, nil
}

// Get returns one lead the user may see.
func (s *LeadService) Get(ctx context.Context, userID, id string) (*models.Lead, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	ok, err := recordVisible(ctx, s.perms, models.RecordTypeLead, userID, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
	}
	return item, nil
}

// Create inserts a lead and reconciles its grants in one transaction.
func (s *LeadService) Create(ctx context.Context, userID string, req CreateLeadRequest) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	item := &models.Lead{
		UserID:     userID,
		AssignedTo: req.AssignedTo,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		Access:     access,
		Status:     req.Status,
	}

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeLead, req.SharedWith)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lead")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeLead, *item, userID, diff)
	return item, nil
}

// Update saves a lead and reconciles its grants in one transaction.
func (s *LeadService) Update(ctx context.Context, userID, id string, req UpdateLeadRequest) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	item.AssignedTo = req.AssignedTo
	item.FirstName = req.FirstName
	item.LastName = req.LastName
	item.Company = req.Company
	item.Email = req.Email
	item.Phone = req.Phone
	item.Access = access
	item.Status = req.Status

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeLead, req.SharedWith)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeLead, *item, userID, diff)
	return item, nil
}

// Delete soft-deletes a lead and settles the user's list page.
func (s *LeadService) Delete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lead")
	}

	outcome := &DeleteOutcome{}
	if fromListView {
		page, changed, err := s.listing.OnRecordRemoved(ctx, userID, ViewLeads, countBefore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle list page")
		}
		outcome.Page = page
		outcome.PageChanged = changed
	} else {
		if err := s.listing.ResetPage(ctx, userID, ViewLeads); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset list page")
		}
		outcome.Page = 1
	}
	return outcome, nil
}

// Filtered returns the user's full filtered set, unpaginated, for exports.
func (s *LeadService) Filtered(ctx context.Context, userID string) ([]models.Shareable, error) {
	candidates, decider, err := s.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := s.listing.State(ctx, userID, ViewLeads)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filter state")
	}
	return VisibleRecords(candidates, decider,
		CategoryPredicate(state.EffectiveCategories(s.defaultFilter)),
		QueryPredicate(state.Query),
	), nil
}

func (s *LeadService) candidates(ctx context.Context, userID string) ([]models.Shareable, AccessDecider, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, AccessDecider{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leads")
	}
	shared, err := s.perms.SharedRecordIDs(ctx, models.RecordTypeLead, userID)
	if err != nil {
		return nil, AccessDecider{}, err
	}
	candidates := make([]models.Shareable, len(items))
	for i, item := range items {
		candidates[i] = item
	}
	return candidates, NewAccessDecider(userID, shared), nil
}

func (s *LeadService) filteredCount(ctx context.Context, userID string) (int, error) {
	filtered, err := s.Filtered(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}
