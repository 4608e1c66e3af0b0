package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/middleware"
	"github.com/mx-space/press/internal/modules/auth"
	"github.com/mx-space/press/internal/modules/content/article"
	"github.com/mx-space/press/internal/modules/content/category"
	"github.com/mx-space/press/internal/modules/content/image"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/modules/content/tag"
	"github.com/mx-space/press/internal/pkg/response"
)

const apiPrefix = "/api/v1"

// loginLimit bounds password guesses per client IP.
const (
	loginLimit  = 10
	loginWindow = time.Minute
)

var processStart = time.Now()

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group(apiPrefix)
	api.GET("/health", a.health)

	adminMW := []gin.HandlerFunc{
		middleware.Auth(a.tokens),
		middleware.RequireGroup(a.cfg.Auth.AdminGroup),
		middleware.Idempotence(a.rc),
	}

	auth.NewHandler(a.auth, a.tokens).RegisterRoutes(api,
		middleware.RateLimit(a.rc, "login", loginLimit, loginWindow))
	slug.NewHandler(a.slugs).RegisterRoutes(api, adminMW...)
	article.NewHandler(a.articles).RegisterRoutes(api, adminMW...)
	category.NewHandler(a.cats).RegisterRoutes(api, adminMW...)
	tag.NewHandler(a.tags).RegisterRoutes(api, adminMW...)
	image.NewHandler(a.images).RegisterRoutes(api, adminMW...)
}

func (a *App) health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"database": "ok"}

	ctx := c.Request.Context()
	if a.conn.SQL != nil {
		if sqlDB, err := a.conn.SQL.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if a.conn.Mongo != nil {
		if err := a.conn.Mongo.Client().Ping(ctx, nil); err != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if a.rc != nil {
		checks["redis"] = "ok"
		if err := a.rc.Raw().Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"driver": a.conn.Driver,
		"checks": checks,
		"uptime": humanizeDuration(time.Since(processStart)),
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
