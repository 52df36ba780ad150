package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/middleware"
	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/internal/repository"
	"github.com/relaycrm/crm-api/internal/service"
	"github.com/relaycrm/crm-api/pkg/response"
)

// opportunityHandlerFixture wires the real service stack over sqlmock and
// miniredis, so the handler test exercises the whole request path.
type opportunityHandlerFixture struct {
	handler *OpportunityHandler
	mock    sqlmock.Sqlmock
}

func newOpportunityHandlerFixture(t *testing.T) *opportunityHandlerFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	perms := service.NewPermissionService(repository.NewPermissionRepository(sqlxDB), nil)
	listing := service.NewListingService(repository.NewFilterStateRepository(client, time.Hour), 20, nil, nil)
	categories := models.CategoryList{
		{Key: "prospecting", Label: "Prospecting"},
		{Key: "won", Label: "Closed/Won"},
	}
	svc := service.NewOpportunityService(
		sqlxDB,
		repository.NewOpportunityRepository(sqlxDB),
		perms,
		listing,
		service.NewShareNotifier(nil, nil, nil),
		categories,
		nil,
		nil,
		nil,
	)
	return &opportunityHandlerFixture{handler: NewOpportunityHandler(svc), mock: mock}
}

func (f *opportunityHandlerFixture) expectListQueries(rows *sqlmock.Rows) {
	f.mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE deleted_at IS NULL").
		WillReturnRows(rows)
	f.mock.ExpectQuery("SELECT record_id FROM permissions").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}))
}

func opportunityListRows(names ...string) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "assigned_to", "name", "access", "stage",
		"amount", "probability", "closes_on", "deleted_at", "created_at", "updated_at",
	})
	for i, name := range names {
		rows.AddRow(itemID(i+1), "u1", nil, name, "Private", "prospecting", 100.0, 50, nil, nil, now, now)
	}
	return rows
}

func itemID(n int) string {
	return fmt.Sprintf("o%d", n)
}

func authedRequest(t *testing.T, method, target string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "jane@example.com"})
	return rec, c
}

func TestOpportunityHandlerList(t *testing.T) {
	f := newOpportunityHandlerFixture(t)
	f.expectListQueries(opportunityListRows("Acme renewal", "Globex intro"))

	rec, c := authedRequest(t, http.MethodGet, "/opportunities?from_list=true&sidebar=true")
	f.handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.Page)
	assert.Equal(t, 2, envelope.Pagination.TotalCount)

	require.NotNil(t, envelope.Meta)
	assert.Contains(t, envelope.Meta, "filter")
	assert.Contains(t, envelope.Meta, "tally")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOpportunityHandlerListWithoutClaims(t *testing.T) {
	f := newOpportunityHandlerFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/opportunities", nil)
	f.handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpportunityHandlerGetNotFound(t *testing.T) {
	f := newOpportunityHandlerFixture(t)
	f.mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE id =").
		WillReturnError(sql.ErrNoRows)

	rec, c := authedRequest(t, http.MethodGet, "/opportunities/missing")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	f.handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpportunityHandlerDeleteFromList(t *testing.T) {
	f := newOpportunityHandlerFixture(t)

	now := time.Now()
	single := sqlmock.NewRows([]string{
		"id", "user_id", "assigned_to", "name", "access", "stage",
		"amount", "probability", "closes_on", "deleted_at", "created_at", "updated_at",
	}).AddRow("o1", "u1", nil, "Acme renewal", "Private", "prospecting", 100.0, 50, nil, nil, now, now)
	f.mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE id =").
		WillReturnRows(single)
	f.expectListQueries(opportunityListRows("Acme renewal"))
	f.mock.ExpectExec("UPDATE opportunities SET deleted_at =").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, c := authedRequest(t, http.MethodDelete, "/opportunities/o1?from_list=true")
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	f.handler.Delete(c)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["page"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
