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

type taskRepository interface {
	ListActive(ctx context.Context) ([]models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Task) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Task) error
	Complete(ctx context.Context, id string, ts time.Time) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// CreateTaskRequest holds payload for creating tasks.
type CreateTaskRequest struct {
	Name       string     `json:"name" validate:"required"`
	Category   string     `json:"category" validate:"required"`
	Access     string     `json:"access"`
	AssignedTo *string    `json:"assigned_to"`
	DueAt      *time.Time `json:"due_at"`
	SharedWith []string   `json:"shared_with"`
}

// UpdateTaskRequest holds payload for updating tasks.
type UpdateTaskRequest struct {
	Name       string     `json:"name" validate:"required"`
	Category   string     `json:"category" validate:"required"`
	Access     string     `json:"access"`
	AssignedTo *string    `json:"assigned_to"`
	DueAt      *time.Time `json:"due_at"`
	SharedWith []string   `json:"shared_with"`
}

// TaskService handles task use-cases, including completion.
type TaskService struct {
	db            *sqlx.DB
	repo          taskRepository
	perms         *PermissionService
	listing       *ListingService
	notifier      *ShareNotifier
	categories    models.CategoryList
	defaultFilter []string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(db *sqlx.DB, repo taskRepository, perms *PermissionService, listing *ListingService, notifier *ShareNotifier, categories models.CategoryList, defaultFilter []string, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
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

// Categories exposes the configured task category definitions.
func (s *TaskService) Categories() models.CategoryList { return s.categories }

// List renders one page of the tasks index for req.UserID.
func (s *TaskService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	req.View = ViewTasks
	candidates, decider, err := s.candidates(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.listing.Compose(ctx, req, candidates, decider, s.categories, s.defaultFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose task list")
	}
	return result, nil
}

// ToggleFilter flips one category in the user's filter session.
func (s *TaskService) ToggleFilter(ctx context.Context, userID, category string) (*models.FilterState, error) {
	if !s.categories.Has(category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", category))
	}
	state, err := s.listing.ToggleCategory(ctx, userID, ViewTasks, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle category filter")
	}
	return state, nil
}

// Get returns one task the user may see.
func (s *TaskService) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	ok, err := recordVisible(ctx, s.perms, models.RecordTypeTask, userID, *item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return item, nil
}

// Create inserts a task and reconciles its grants in one transaction.
func (s *TaskService) Create(ctx context.Context, userID string, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", req.Category))
	}

	item := &models.Task{
		UserID:       userID,
		AssignedTo:   req.AssignedTo,
		Name:         req.Name,
		Access:       access,
		TaskCategory: req.Category,
		DueAt:        req.DueAt,
	}

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeTask, req.SharedWith)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeTask, *item, userID, diff)
	return item, nil
}

// Update saves a task and reconciles its grants in one transaction.
func (s *TaskService) Update(ctx context.Context, userID, id string, req UpdateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	access, err := normalizeAccess(req.Access)
	if err != nil {
		return nil, err
	}
	if !s.categories.Has(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", req.Category))
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	item.AssignedTo = req.AssignedTo
	item.Name = req.Name
	item.Access = access
	item.TaskCategory = req.Category
	item.DueAt = req.DueAt

	var diff models.PermissionDiff
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, item); err != nil {
			return err
		}
		diff, err = s.perms.Reconcile(ctx, tx, *item, models.RecordTypeTask, req.SharedWith)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}

	s.notifier.NotifyDiff(ctx, models.RecordTypeTask, *item, userID, diff)
	return item, nil
}

// Complete marks a task done. Completed tasks drop out of the pending list
// the way deleted records do, so the saved page gets the same settling.
func (s *TaskService) Complete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Complete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete task")
	}

	return s.settlePage(ctx, userID, countBefore, fromListView)
}

// Delete soft-deletes a task and settles the user's list page.
func (s *TaskService) Delete(ctx context.Context, userID, id string, fromListView bool) (*DeleteOutcome, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	countBefore, err := s.filteredCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}

	return s.settlePage(ctx, userID, countBefore, fromListView)
}

// Filtered returns the user's full filtered set, unpaginated, for exports.
func (s *TaskService) Filtered(ctx context.Context, userID string) ([]models.Shareable, error) {
	candidates, decider, err := s.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := s.listing.State(ctx, userID, ViewTasks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filter state")
	}
	return VisibleRecords(candidates, decider,
		CategoryPredicate(state.EffectiveCategories(s.defaultFilter)),
		QueryPredicate(state.Query),
	), nil
}

func (s *TaskService) settlePage(ctx context.Context, userID string, countBefore int, fromListView bool) (*DeleteOutcome, error) {
	outcome := &DeleteOutcome{}
	if fromListView {
		page, changed, err := s.listing.OnRecordRemoved(ctx, userID, ViewTasks, countBefore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle list page")
		}
		outcome.Page = page
		outcome.PageChanged = changed
		return outcome, nil
	}
	if err := s.listing.ResetPage(ctx, userID, ViewTasks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset list page")
	}
	outcome.Page = 1
	return outcome, nil
}

func (s *TaskService) candidates(ctx context.Context, userID string) ([]models.Shareable, AccessDecider, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, AccessDecider{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	shared, err := s.perms.SharedRecordIDs(ctx, models.RecordTypeTask, userID)
	if err != nil {
		return nil, AccessDecider{}, err
	}
	candidates := make([]models.Shareable, len(items))
	for i, item := range items {
		candidates[i] = item
	}
	return candidates, NewAccessDecider(userID, shared), nil
}

func (s *TaskService) filteredCount(ctx context.Context, userID string) (int, error) {
	filtered, err := s.Filtered(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}
