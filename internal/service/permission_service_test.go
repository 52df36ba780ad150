package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
)

// memGrantStore keeps grants in memory keyed by record id; the tx argument
// is ignored since nothing here touches a database.
type memGrantStore struct {
	grants map[string][]string
	fail   error
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: make(map[string][]string)}
}

func (m *memGrantStore) UserIDsForRecordTx(_ context.Context, _ *sqlx.Tx, _, recordID string) ([]string, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	return append([]string(nil), m.grants[recordID]...), nil
}

func (m *memGrantStore) InsertTx(_ context.Context, _ *sqlx.Tx, grant *models.PermissionGrant) error {
	if m.fail != nil {
		return m.fail
	}
	m.grants[grant.RecordID] = append(m.grants[grant.RecordID], grant.UserID)
	return nil
}

func (m *memGrantStore) DeleteTx(_ context.Context, _ *sqlx.Tx, _, recordID, userID string) error {
	if m.fail != nil {
		return m.fail
	}
	kept := m.grants[recordID][:0]
	for _, id := range m.grants[recordID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.grants[recordID] = kept
	return nil
}

func (m *memGrantStore) SharedRecordIDs(_ context.Context, _, userID string) ([]string, error) {
	var ids []string
	for recordID, users := range m.grants {
		for _, id := range users {
			if id == userID {
				ids = append(ids, recordID)
			}
		}
	}
	return ids, nil
}

func (m *memGrantStore) HasGrant(_ context.Context, _, recordID, userID string) (bool, error) {
	for _, id := range m.grants[recordID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func TestReconcileAddsAndRemoves(t *testing.T) {
	store := newMemGrantStore()
	store.grants["o1"] = []string{"u5"}
	svc := NewPermissionService(store, nil)

	rec := models.Opportunity{ID: "o1", UserID: "owner", Access: models.AccessShared}
	diff, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"u5", "u6"})
	require.NoError(t, err)

	assert.Equal(t, []string{"u6"}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.ElementsMatch(t, []string{"u5", "u6"}, store.grants["o1"])
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newMemGrantStore()
	svc := NewPermissionService(store, nil)
	rec := models.Opportunity{ID: "o1", UserID: "owner", Access: models.AccessShared}

	first, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"u5", "u6"})
	require.NoError(t, err)
	assert.False(t, first.Empty())

	second, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"u5", "u6"})
	require.NoError(t, err)
	assert.True(t, second.Empty())
}

func TestReconcileNeverStoresOwnerOrAssignee(t *testing.T) {
	store := newMemGrantStore()
	svc := NewPermissionService(store, nil)
	rec := models.Opportunity{ID: "o1", UserID: "owner", AssignedTo: strPtr("helper"), Access: models.AccessShared}

	diff, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"owner", "helper", "u5", ""})
	require.NoError(t, err)

	assert.Equal(t, []string{"u5"}, diff.Added)
	assert.Equal(t, []string{"u5"}, store.grants["o1"])
}

func TestReconcileNonSharedClearsAllGrants(t *testing.T) {
	store := newMemGrantStore()
	store.grants["o1"] = []string{"u5", "u6"}
	svc := NewPermissionService(store, nil)
	rec := models.Opportunity{ID: "o1", UserID: "owner", Access: models.AccessPrivate}

	diff, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"u5", "u6"})
	require.NoError(t, err)

	assert.Empty(t, diff.Added)
	assert.Equal(t, []string{"u5", "u6"}, diff.Removed)
	assert.Empty(t, store.grants["o1"])
}

func TestReconcileSurfacesStoreErrors(t *testing.T) {
	store := newMemGrantStore()
	store.fail = assert.AnError
	svc := NewPermissionService(store, nil)
	rec := models.Opportunity{ID: "o1", UserID: "owner", Access: models.AccessShared}

	_, err := svc.Reconcile(context.Background(), nil, rec, models.RecordTypeOpportunity, []string{"u5"})
	assert.Error(t, err)
}
