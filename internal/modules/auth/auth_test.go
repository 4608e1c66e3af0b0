package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/jwt"
	"github.com/mx-space/press/internal/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *jwt.Manager) {
	t.Helper()
	tokens := jwt.NewManager("test-secret", time.Hour)
	return NewService(datastore.NewMemory[models.UserModel](), tokens, nil), tokens
}

func TestEnsureAdminAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newService(t)

	u, err := svc.EnsureAdmin(ctx, "editor", "correct horse", "ADMINS")
	require.NoError(t, err)
	assert.True(t, u.InGroup("ADMINS"))
	assert.NotEqual(t, "correct horse", u.Password)

	_, _, err = svc.Login(ctx, "editor", "wrong", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "correct horse", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, logged, err := svc.Login(ctx, "editor", "correct horse", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", logged.LastLoginIP)
	require.NotNil(t, logged.LastLoginTime)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.True(t, claims.InGroup("ADMINS"))
}

func TestEnsureAdminResetsExisting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.EnsureAdmin(ctx, "editor", "first-password", "ADMINS")
	require.NoError(t, err)
	second, err := svc.EnsureAdmin(ctx, "editor", "second-password", "ADMINS")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StringArray{"ADMINS"}, second.Groups)

	_, _, err = svc.Login(ctx, "editor", "first-password", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "editor", "second-password", "")
	assert.NoError(t, err)
}

func TestEnsureAdminValidation(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.EnsureAdmin(context.Background(), "ed", "short", "ADMINS")
	fields, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, tokens := newService(t)
	_, err := svc.EnsureAdmin(context.Background(), "editor", "correct horse", "ADMINS")
	require.NoError(t, err)

	r := gin.New()
	NewHandler(svc, tokens).RegisterRoutes(r.Group("/api/v1"))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"username":"editor"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"editor","password":"nope"}`).Code)

	w := post(`{"username":"editor","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	assert.Empty(t, body.User.Password, "password hash is never serialised")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"username":"editor"`)
}
