package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
)

func newPermissionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPermissionRepositoryUserIDsForRecord(t *testing.T) {
	db, mock, cleanup := newPermissionMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow("u2").AddRow("u5")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM permissions WHERE record_type = $1 AND record_id = $2 ORDER BY user_id")).
		WithArgs(models.RecordTypeOpportunity, "o1").
		WillReturnRows(rows)

	ids, err := repo.UserIDsForRecord(context.Background(), models.RecordTypeOpportunity, "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u5"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositorySharedRecordIDs(t *testing.T) {
	db, mock, cleanup := newPermissionMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	rows := sqlmock.NewRows([]string{"record_id"}).AddRow("o1").AddRow("o9")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT record_id FROM permissions WHERE record_type = $1 AND user_id = $2")).
		WithArgs(models.RecordTypeLead, "u1").
		WillReturnRows(rows)

	ids, err := repo.SharedRecordIDs(context.Background(), models.RecordTypeLead, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o9"}, ids)
}

func TestPermissionRepositoryHasGrant(t *testing.T) {
	db, mock, cleanup := newPermissionMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(models.RecordTypeTask, "t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasGrant(context.Background(), models.RecordTypeTask, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionRepositoryInsertAndDeleteTx(t *testing.T) {
	db, mock, cleanup := newPermissionMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO permissions").
		WithArgs(sqlmock.AnyArg(), "u2", models.RecordTypeOpportunity, "o1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permissions WHERE record_type = $1 AND record_id = $2 AND user_id = $3")).
		WithArgs(models.RecordTypeOpportunity, "o1", "u5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	grant := &models.PermissionGrant{
		UserID:     "u2",
		RecordType: models.RecordTypeOpportunity,
		RecordID:   "o1",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.InsertTx(context.Background(), tx, grant))
	assert.NotEmpty(t, grant.ID, "insert assigns an id when missing")

	require.NoError(t, repo.DeleteTx(context.Background(), tx, models.RecordTypeOpportunity, "o1", "u5"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
