package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

// View names key the per-user filter sessions and the list endpoints.
const (
	ViewOpportunities = "opportunities"
	ViewLeads         = "leads"
	ViewTasks         = "tasks"
	ViewAccounts      = "accounts"
	ViewContacts      = "contacts"
)

type filterStateStore interface {
	Get(ctx context.Context, userID, view string) (*models.FilterState, error)
	Save(ctx context.Context, userID, view string, state *models.FilterState) error
}

// ListRequest carries the caller-side inputs of one index render. Page 0
// keeps the page saved in the session; a nil Query keeps the saved query.
// FromListView is the explicit navigation flag: arriving from anywhere but
// the list itself resets the page to 1. WithSidebar asks for the category
// tally over the filtered, unpaginated set.
type ListRequest struct {
	UserID       string
	View         string
	Page         int
	Query        *string
	FromListView bool
	WithSidebar  bool
}

// ListResult is the outcome of one index render.
type ListResult struct {
	Records       []models.Shareable
	Page          int
	PerPage       int
	TotalFiltered int
	Tally         map[string]int
	State         models.FilterState
}

// ListingService runs the shared index pipeline: load session state, apply
// the requested transitions, narrow the candidate set by visibility plus
// category and query in one pass, slice the current page, and optionally
// tally the sidebar. Session writes are last-write-wins.
type ListingService struct {
	states  filterStateStore
	perPage int
	metrics *MetricsService
	logger  *zap.Logger
}

// NewListingService constructs the service. metrics may be nil.
func NewListingService(states filterStateStore, perPage int, metrics *MetricsService, logger *zap.Logger) *ListingService {
	if perPage <= 0 {
		perPage = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{states: states, perPage: perPage, metrics: metrics, logger: logger}
}

// PerPage exposes the fixed page size.
func (s *ListingService) PerPage() int { return s.perPage }

// Compose renders one page of an index view. candidates is the fetched,
// unscoped collection; canView and the state-derived predicates are applied
// together in a single pass. The displayed page may be empty when the saved
// page lies past the end of the filtered set; that matches the list views,
// which only re-clamp the page on deletions.
func (s *ListingService) Compose(ctx context.Context, req ListRequest, candidates []models.Shareable, decider AccessDecider, categories models.CategoryList, viewDefault []string) (*ListResult, error) {
	state, err := s.loadState(ctx, req.UserID, req.View)
	if err != nil {
		return nil, err
	}

	if req.Query != nil {
		state.SetQuery(*req.Query)
	}
	if !req.FromListView {
		state.CurrentPage = 1
	}
	if req.Page > 0 {
		state.SetPage(req.Page)
	}

	filtered := VisibleRecords(candidates, decider,
		CategoryPredicate(state.EffectiveCategories(viewDefault)),
		QueryPredicate(state.Query),
	)

	if err := s.saveState(ctx, req.UserID, req.View, state); err != nil {
		return nil, err
	}

	result := &ListResult{
		Records:       pageSlice(filtered, state.CurrentPage, s.perPage),
		Page:          state.CurrentPage,
		PerPage:       s.perPage,
		TotalFiltered: len(filtered),
		State:         *state,
	}
	if req.WithSidebar {
		result.Tally = AggregateByCategory(filtered, categories)
	}
	return result, nil
}

// ToggleCategory flips one category key in the session state of (user, view)
// and returns the updated state.
func (s *ListingService) ToggleCategory(ctx context.Context, userID, view, key string) (*models.FilterState, error) {
	state, err := s.loadState(ctx, userID, view)
	if err != nil {
		return nil, err
	}
	state.ToggleCategory(key)
	if err := s.saveState(ctx, userID, view, state); err != nil {
		return nil, err
	}
	return state, nil
}

// OnRecordRemoved rolls the saved page back when a deletion emptied the
// current page. filteredCountBefore is the filtered-set size before the
// record disappeared. Returns the page now in effect and whether it moved.
func (s *ListingService) OnRecordRemoved(ctx context.Context, userID, view string, filteredCountBefore int) (int, bool, error) {
	state, err := s.loadState(ctx, userID, view)
	if err != nil {
		return 0, false, err
	}
	changed := state.OnRecordRemoved(filteredCountBefore, s.perPage)
	if err := s.saveState(ctx, userID, view, state); err != nil {
		return 0, false, err
	}
	return state.CurrentPage, changed, nil
}

// State returns the saved filter state of (user, view) without mutating it.
// Callers use it to recompute the filtered set outside a page render, such
// as just before a deletion.
func (s *ListingService) State(ctx context.Context, userID, view string) (*models.FilterState, error) {
	return s.loadState(ctx, userID, view)
}

// ResetPage forces the saved page back to 1, used when a view is entered
// from a related record's page rather than the list itself.
func (s *ListingService) ResetPage(ctx context.Context, userID, view string) error {
	state, err := s.loadState(ctx, userID, view)
	if err != nil {
		return err
	}
	state.CurrentPage = 1
	return s.saveState(ctx, userID, view, state)
}

func (s *ListingService) loadState(ctx context.Context, userID, view string) (*models.FilterState, error) {
	start := time.Now()
	state, err := s.states.Get(ctx, userID, view)
	if err != nil {
		s.metrics.ObserveSessionRead(false, time.Since(start))
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrCacheMiss.Code {
			return models.NewFilterState(), nil
		}
		return nil, err
	}
	s.metrics.ObserveSessionRead(true, time.Since(start))
	return state, nil
}

func (s *ListingService) saveState(ctx context.Context, userID, view string, state *models.FilterState) error {
	start := time.Now()
	err := s.states.Save(ctx, userID, view, state)
	s.metrics.ObserveSessionWrite(time.Since(start))
	return err
}

func pageSlice(records []models.Shareable, page, perPage int) []models.Shareable {
	start := (page - 1) * perPage
	if start >= len(records) {
		return []models.Shareable{}
	}
	end := start + perPage
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}
