package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
)

func newOpportunityMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func opportunityRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "assigned_to", "name", "access", "stage",
		"amount", "probability", "closes_on", "deleted_at", "created_at", "updated_at",
	}).AddRow("o1", "u1", nil, "Acme renewal", "Private", "prospecting", 1200.5, 60, nil, nil, now, now)
}

func TestOpportunityRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE deleted_at IS NULL").
		WillReturnRows(opportunityRows(time.Now()))

	items, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme renewal", items[0].Name)
	assert.Equal(t, models.AccessPrivate, items[0].Access)
}

func TestOpportunityRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestOpportunityRepositoryCreateTxAssignsID(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO opportunities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	item := &models.Opportunity{UserID: "u1", Name: "Acme renewal", Access: models.AccessPrivate, Stage: "prospecting"}
	require.NoError(t, repo.CreateTx(context.Background(), tx, item))
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepositoryUpdateTxNoRowIsNotFound(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE opportunities SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.UpdateTx(context.Background(), tx, &models.Opportunity{ID: "gone", Name: "x", Stage: "won"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
}

func TestOpportunityRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newOpportunityMock(t)
	defer cleanup()
	repo := NewOpportunityRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec("UPDATE opportunities SET deleted_at =").
		WithArgs("o1", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "o1", ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}
