package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

type fakeAccountRepo struct {
	items  map[string]*models.Account
	nextID int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{items: make(map[string]*models.Account)}
}

func (f *fakeAccountRepo) ListActive(_ context.Context) ([]models.Account, error) {
	out := make([]models.Account, 0, len(f.items))
	for _, item := range f.items {
		if item.DeletedAt == nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id string) (*models.Account, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, errNoRows()
	}
	clone := *item
	return &clone, nil
}

// NameTaken matches non-deleted accounts of the owner, mirroring the SQL
// the real repository runs.
func (f *fakeAccountRepo) NameTaken(_ context.Context, ownerID, name, excludeID string) (bool, error) {
	for _, item := range f.items {
		if item.ID == excludeID || item.UserID != ownerID || item.DeletedAt != nil {
			continue
		}
		if item.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepo) CreateTx(_ context.Context, _ *sqlx.Tx, item *models.Account) error {
	f.nextID++
	item.ID = itemID(f.nextID)
	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *fakeAccountRepo) UpdateTx(_ context.Context, _ *sqlx.Tx, item *models.Account) error {
	if _, ok := f.items[item.ID]; !ok {
		return errNoRows()
	}
	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *fakeAccountRepo) SoftDelete(_ context.Context, id string, ts time.Time) error {
	item, ok := f.items[id]
	if !ok {
		return errNoRows()
	}
	item.DeletedAt = &ts
	return nil
}

func newAccountFixture(t *testing.T) (*AccountService, *fakeAccountRepo, func(int)) {
	t.Helper()
	db, mock, cleanup := newTxMock(t)
	t.Cleanup(cleanup)
	repo := newFakeAccountRepo()
	perms := NewPermissionService(newMemGrantStore(), nil)
	listing := NewListingService(newMemFilterStateStore(), 20, nil, nil)
	svc := NewAccountService(db, repo, perms, listing, NewShareNotifier(nil, nil, nil), nil, nil)
	expectTxs := func(n int) {
		for i := 0; i < n; i++ {
			mock.ExpectBegin()
			mock.ExpectCommit()
		}
	}
	return svc, repo, expectTxs
}

func TestAccountCreateRejectsDuplicateName(t *testing.T) {
	svc, _, expectTxs := newAccountFixture(t)
	expectTxs(1)

	_, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateName.Code, appErrors.FromError(err).Code)
}

func TestAccountDuplicateNameScopedToOwner(t *testing.T) {
	svc, _, expectTxs := newAccountFixture(t)
	expectTxs(2)

	_, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.NoError(t, err)

	// A different owner may reuse the name.
	_, err = svc.Create(context.Background(), "u2", CreateAccountRequest{Name: "Acme Corp"})
	assert.NoError(t, err)
}

func TestAccountUpdateKeepingOwnNameIsFine(t *testing.T) {
	svc, _, expectTxs := newAccountFixture(t)
	expectTxs(2)

	created, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "u1", created.ID, UpdateAccountRequest{
		Name:    "Acme Corp",
		Website: "https://acme.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example", updated.Website)
}

func TestAccountUpdateToTakenNameFails(t *testing.T) {
	svc, _, expectTxs := newAccountFixture(t)
	expectTxs(2)

	_, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Globex"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "u1", second.ID, UpdateAccountRequest{Name: "Acme Corp"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateName.Code, appErrors.FromError(err).Code)
}

func TestAccountNameFreedAfterSoftDelete(t *testing.T) {
	svc, repo, expectTxs := newAccountFixture(t)
	expectTxs(2)

	created, err := svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	require.NoError(t, err)

	// Soft-deleting frees the name, matching the repository's live-row scan.
	_, err = svc.Delete(context.Background(), "u1", created.ID, false)
	require.NoError(t, err)
	require.NotNil(t, repo.items[created.ID].DeletedAt)

	_, err = svc.Create(context.Background(), "u1", CreateAccountRequest{Name: "Acme Corp"})
	assert.NoError(t, err)
}
