package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadeodlp/canalradionov-service/internal/models"
	"github.com/amadeodlp/canalradionov-service/pkg/utils"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*models.User)}
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.byEmail[email], nil
}

func (s *fakeUserStore) Create(_ context.Context, email, passwordHash, name string, role models.Role) (*models.User, error) {
	u := &models.User{ID: "id-" + name, Email: email, Password: passwordHash, Name: name, Role: role}
	s.byEmail[email] = u
	return u, nil
}

func newAuthRouter(store UserStore) (*gin.Engine, *JWTService) {
	gin.SetMode(gin.TestMode)
	svc := NewJWTService("test-secret", 1)
	h := NewHandler(store, svc, nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r, svc
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterIssuesToken(t *testing.T) {
	store := newFakeUserStore()
	r, svc := newAuthRouter(store)

	w := postJSON(t, r, "/auth/register", gin.H{
		"email": "nova@canalradionov.com", "password": "s3cret-radio", "name": "Nova", "role": "host",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Success bool          `json:"success"`
		Data    TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "Nova", envelope.Data.User.Name)
	assert.Equal(t, models.RoleHost, envelope.Data.User.Role)

	claims, err := svc.Validate(envelope.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "id-Nova", claims.UserID)
	assert.Equal(t, "host", claims.Role)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newAuthRouter(store)

	body := gin.H{"email": "a@b.co", "password": "s3cret-radio", "name": "Ana"}
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/auth/register", body).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, r, "/auth/register", body).Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	r, _ := newAuthRouter(newFakeUserStore())
	w := postJSON(t, r, "/auth/register", gin.H{
		"email": "a@b.co", "password": "s3cret-radio", "name": "Ana", "role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	store := newFakeUserStore()
	hash, err := utils.HashPassword("s3cret-radio")
	require.NoError(t, err)
	store.byEmail["nova@canalradionov.com"] = &models.User{
		ID: "u1", Email: "nova@canalradionov.com", Password: hash, Name: "Nova", Role: models.RoleHost,
	}
	r, _ := newAuthRouter(store)

	w := postJSON(t, r, "/auth/login", gin.H{"email": "nova@canalradionov.com", "password": "s3cret-radio"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/auth/login", gin.H{"email": "nova@canalradionov.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(t, r, "/auth/login", gin.H{"email": "nobody@canalradionov.com", "password": "s3cret-radio"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
