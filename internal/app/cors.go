package app

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
)

// corsConfig allows any origin in development. Otherwise an origin must match
// one of patterns: an exact host, "*.example.com" or "localhost:*". Patterns
// written as full origins ("https://example.com") also match on the scheme.
func corsConfig(patterns []string, dev bool) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if dev || len(patterns) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		for _, p := range patterns {
			if originAllowed(p, origin) {
				return true
			}
		}
		return false
	}
	return cfg
}

func originAllowed(pattern, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if scheme, host, ok := strings.Cut(pattern, "://"); ok {
		return scheme == u.Scheme && matchHost(host, u.Host)
	}
	return matchHost(pattern, u.Host)
}

func matchHost(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
