package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second
)

// Idempotence rejects a JSON POST that repeats one still in flight or one that
// succeeded in the last minute, so a double-submitted create makes one row.
// Multipart uploads and other methods pass untouched.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method != http.MethodPost ||
			!strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := fmt.Sprintf("press:idempotence:%s", key)
		ctx := c.Request.Context()
		raw := rdb.Raw()

		val, err := raw.Get(ctx, redisKey).Result()
		if err == nil {
			msg := "an identical request succeeded less than a minute ago"
			if val == "0" {
				msg = "an identical request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}
		if !errors.Is(err, goredis.Nil) {
			c.Next()
			return
		}

		if setErr := raw.Set(ctx, redisKey, "0", idempotenceTTL).Err(); setErr != nil {
			c.Next()
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			raw.Set(ctx, redisKey, "1", goredis.KeepTTL)
		} else {
			raw.Del(ctx, redisKey)
		}
	}
}

// resolveIdempotenceKey prefers the client's x-idempotence header and falls
// back to a hash of the request and its caller.
func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	token := extractToken(c)
	if len(body) == 0 && token == "" {
		return "", nil
	}

	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" + c.ClientIP() + "|" + token
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
