package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

// memFilterStateStore holds session state in a map and reports cache misses
// the same way the Redis-backed store does.
type memFilterStateStore struct {
	states map[string]*models.FilterState
}

func newMemFilterStateStore() *memFilterStateStore {
	return &memFilterStateStore{states: make(map[string]*models.FilterState)}
}

func (m *memFilterStateStore) Get(_ context.Context, userID, view string) (*models.FilterState, error) {
	state, ok := m.states[userID+":"+view]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	clone := *state
	clone.ActiveCategories = append([]string(nil), state.ActiveCategories...)
	return &clone, nil
}

func (m *memFilterStateStore) Save(_ context.Context, userID, view string, state *models.FilterState) error {
	clone := *state
	clone.ActiveCategories = append([]string(nil), state.ActiveCategories...)
	m.states[userID+":"+view] = &clone
	return nil
}

func opportunityFixtures(n int, stage string) []models.Shareable {
	records := make([]models.Shareable, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.Opportunity{
			ID:     fmt.Sprintf("o%d", i+1),
			UserID: "u1",
			Name:   fmt.Sprintf("deal %d", i+1),
			Stage:  stage,
		})
	}
	return records
}

func TestComposeSlicesRequestedPage(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)

	records := opportunityFixtures(25, "prospecting")
	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, Page: 3, FromListView: true,
	}, records, NewAccessDecider("u1", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Page)
	assert.Equal(t, 25, result.TotalFiltered)
	assert.Len(t, result.Records, 5)
	assert.Equal(t, "o21", result.Records[0].RecordID())
}

func TestComposeDoesNotClampPagePastEnd(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 20, nil, nil)

	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, Page: 42, FromListView: true,
	}, opportunityFixtures(1, "prospecting"), NewAccessDecider("u1", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 42, result.Page, "page must render empty, not clamp")
	assert.Empty(t, result.Records)
	assert.Equal(t, 1, result.TotalFiltered)
}

func TestComposeResetsPageWhenNotFromListView(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewOpportunities, &models.FilterState{CurrentPage: 5}))

	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, FromListView: false,
	}, opportunityFixtures(25, "prospecting"), NewAccessDecider("u1", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Page)
}

func TestComposeKeepsSavedPageFromListView(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewOpportunities, &models.FilterState{CurrentPage: 2}))

	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, FromListView: true,
	}, opportunityFixtures(25, "prospecting"), NewAccessDecider("u1", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Page)
	assert.Equal(t, "o11", result.Records[0].RecordID())
}

func TestComposeQueryUpdateResetsPage(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewOpportunities, &models.FilterState{CurrentPage: 3}))

	q := "deal 2"
	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, Query: &q, FromListView: true,
	}, opportunityFixtures(25, "prospecting"), NewAccessDecider("u1", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Page)
	assert.Equal(t, "deal 2", result.State.Query)
}

func TestComposeAppliesDefaultCategoriesAndSidebar(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)

	records := []models.Shareable{
		models.Opportunity{ID: "o1", UserID: "u1", Stage: "prospecting"},
		models.Opportunity{ID: "o2", UserID: "u1", Stage: "lost"},
	}
	categories := models.CategoryList{
		{Key: "prospecting", Label: "Prospecting"},
		{Key: "lost", Label: "Closed/Lost"},
	}

	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u1", View: ViewOpportunities, FromListView: true, WithSidebar: true,
	}, records, NewAccessDecider("u1", nil), categories, []string{"prospecting"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalFiltered)
	assert.Equal(t, "o1", result.Records[0].RecordID())
	// sidebar tallies the filtered set, so the lost deal is gone entirely
	assert.Equal(t, 1, result.Tally["prospecting"])
	assert.Equal(t, 0, result.Tally["lost"])
	assert.Equal(t, 1, result.Tally[BucketAll])
}

func TestComposeCacheMissStartsFresh(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)

	result, err := svc.Compose(context.Background(), ListRequest{
		UserID: "u9", View: ViewLeads, FromListView: true,
	}, nil, NewAccessDecider("u9", nil), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Empty(t, result.Records)
}

func TestToggleCategoryPersistsAndResetsPage(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewLeads, &models.FilterState{CurrentPage: 4}))

	state, err := svc.ToggleCategory(context.Background(), "u1", ViewLeads, "contacted")
	require.NoError(t, err)
	assert.Equal(t, []string{"contacted"}, state.ActiveCategories)
	assert.Equal(t, 1, state.CurrentPage)

	saved, err := store.Get(context.Background(), "u1", ViewLeads)
	require.NoError(t, err)
	assert.Equal(t, []string{"contacted"}, saved.ActiveCategories)
}

func TestOnRecordRemovedPersistsSettledPage(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 20, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewTasks, &models.FilterState{CurrentPage: 43}))

	page, changed, err := svc.OnRecordRemoved(context.Background(), "u1", ViewTasks, 841)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 42, page)

	saved, err := store.Get(context.Background(), "u1", ViewTasks)
	require.NoError(t, err)
	assert.Equal(t, 42, saved.CurrentPage)
}

func TestResetPage(t *testing.T) {
	store := newMemFilterStateStore()
	svc := NewListingService(store, 20, nil, nil)
	require.NoError(t, store.Save(context.Background(), "u1", ViewTasks, &models.FilterState{CurrentPage: 7}))

	require.NoError(t, svc.ResetPage(context.Background(), "u1", ViewTasks))

	saved, err := store.Get(context.Background(), "u1", ViewTasks)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.CurrentPage)
}
