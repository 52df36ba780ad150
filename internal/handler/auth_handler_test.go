package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaycrm/crm-api/internal/middleware"
	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/internal/service"
	"github.com/relaycrm/crm-api/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthRepo struct {
	user   *models.User
	tokens map[string]*models.RefreshToken
}

func newStubAuthRepo(user *models.User) *stubAuthRepo {
	return &stubAuthRepo{user: user, tokens: make(map[string]*models.RefreshToken)}
}

func (s *stubAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

func (s *stubAuthRepo) UpdatePassword(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.tokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, tok := range s.tokens {
		if tok.ID == id {
			tok.Revoked = true
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(_ context.Context, _ string) error { return nil }

func newAuthHandlerFixture(t *testing.T, password string) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubAuthRepo(&models.User{
		ID:           "u1",
		Email:        "jane@example.com",
		PasswordHash: string(hash),
		FullName:     "Jane Roe",
		Active:       true,
	})
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "relay-crm-test",
	})
	return NewAuthHandler(svc)
}

func postJSON(t *testing.T, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return rec, c
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	h := newAuthHandlerFixture(t, "s3cret-pass")

	rec, c := postJSON(t, models.LoginRequest{Email: "jane@example.com", Password: "s3cret-pass"})
	h.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	h := newAuthHandlerFixture(t, "s3cret-pass")

	rec, c := postJSON(t, models.LoginRequest{Email: "jane@example.com", Password: "nope"})
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	h := newAuthHandlerFixture(t, "s3cret-pass")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := newAuthHandlerFixture(t, "s3cret-pass")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "jane@example.com", FullName: "Jane Roe"})
	h.Me(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", data["id"])
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	h := newAuthHandlerFixture(t, "s3cret-pass")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
