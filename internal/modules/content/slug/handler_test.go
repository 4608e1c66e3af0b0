package slug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := NewResolver(map[Kind]Finder{
		KindTag: func(_ context.Context, url string) ([]string, error) {
			if url == "go" {
				return []string{"tag-1"}, nil
			}
			return nil, nil
		},
	})
	r := gin.New()
	NewHandler(resolver).RegisterRoutes(r.Group("/api/v1"))

	get := func(query string) (int, map[string]any) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/slug"+query, nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	code, body := get("?name=Hello%20World")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello-world", body["slug"])
	assert.NotContains(t, body, "available")

	_, body = get("?name=Go&kind=tag")
	assert.Equal(t, false, body["available"])

	_, body = get("?name=Go&kind=tag&excludeId=tag-1")
	assert.Equal(t, true, body["available"])

	_, body = get("?name=!!!&kind=tag")
	assert.Equal(t, "", body["slug"])
	assert.Equal(t, false, body["available"])

	code, _ = get("?name=x&kind=post")
	assert.Equal(t, http.StatusBadRequest, code)
}
