package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("  Bearer abc "))
	assert.Equal(t, "abc", NormalizeToken("bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "", NormalizeToken("   "))
}

func TestAuthAndRequireGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := jwt.NewManager("test-secret", time.Hour)

	r := gin.New()
	r.GET("/admin", Auth(tokens), RequireGroup("ADMINS"), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer nonsense").Code)

	editor, err := tokens.Sign("u-1", []string{"EDITORS"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call("Bearer "+editor).Code)

	admin, err := tokens.Sign("u-2", []string{"ADMINS"})
	require.NoError(t, err)
	w := call("Bearer " + admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-2", w.Body.String())
}

func TestAuthTokenSources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := jwt.NewManager("test-secret", time.Hour)
	admin, err := tokens.Sign("u-2", []string{"ADMINS"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", Auth(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: admin})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-2", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?token="+admin, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireGroupWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireGroup("ADMINS"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
