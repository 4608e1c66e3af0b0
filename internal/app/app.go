package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/config"
	"github.com/mx-space/press/internal/database"
	"github.com/mx-space/press/internal/middleware"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/modules/auth"
	"github.com/mx-space/press/internal/modules/content/article"
	"github.com/mx-space/press/internal/modules/content/category"
	"github.com/mx-space/press/internal/modules/content/image"
	"github.com/mx-space/press/internal/modules/content/rewrite"
	"github.com/mx-space/press/internal/modules/content/slug"
	"github.com/mx-space/press/internal/modules/content/tag"
	"github.com/mx-space/press/internal/modules/content/tagsync"
	"github.com/mx-space/press/internal/pkg/blob"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/jwt"
	"github.com/mx-space/press/internal/pkg/lock"
	pkgredis "github.com/mx-space/press/internal/pkg/redis"
	"github.com/mx-space/press/internal/pkg/validation"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	conn   *database.Conn
	rc     *pkgredis.Client
	logger *zap.Logger
	tokens *jwt.Manager

	auth     *auth.Service
	slugs    *slug.Resolver
	articles *article.Service
	cats     *category.Service
	tags     *tag.Service
	images   *image.Service
}

// New initializes the application: config → DB → Redis → blob store → routes.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	conn, err := database.Connect(ctx, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Redis.Enable {
		rc, err = pkgredis.Connect(ctx, cfg.Redis.URLValue())
		if err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	store, err := newBlobStore(cfg, rc, logger)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}

	a := &App{
		cfg:    cfg,
		conn:   conn,
		rc:     rc,
		logger: logger,
		tokens: jwt.NewManager(cfg.JWTSecret, cfg.TokenTTL()),
	}
	a.wire(store)
	a.router = a.newRouter()
	a.registerRoutes()
	return a, nil
}

// wire builds the content services over the selected backends.
func (a *App) wire(store blob.Store) {
	cfg := a.cfg
	articleRepo := repository[models.ArticleModel](a.conn)
	categoryRepo := repository[models.CategoryModel](a.conn)
	tagRepo := repository[models.TagModel](a.conn)
	imageRepo := repository[models.ImageModel](a.conn)
	edgeRepo := repository[models.ArticleTagModel](a.conn)

	var locker lock.Locker = lock.NewLocal()
	if a.rc != nil {
		locker = lock.NewRedis(a.rc)
	}

	a.slugs = slug.NewResolver(map[slug.Kind]slug.Finder{
		slug.KindArticle:  slug.FromRepository(articleRepo),
		slug.KindCategory: slug.FromRepository(categoryRepo),
		slug.KindTag:      slug.FromRepository(tagRepo),
	})
	edges := tagsync.New(edgeRepo, tagRepo, locker)
	rw := rewrite.New(store, matcherFor(cfg.Storage), a.logger.Named("rewrite"))

	a.auth = auth.NewService(repository[models.UserModel](a.conn), a.tokens, a.logger.Named("auth"))
	a.cats = category.NewService(categoryRepo, articleRepo, a.slugs)
	a.tags = tag.NewService(tagRepo, edges, a.slugs, cfg.Content.TagMax)
	a.images = image.NewService(imageRepo, articleRepo, store, rw, a.logger.Named("image"), image.Options{
		MaxUploadBytes: cfg.UploadMaxBytes(),
		ImagePrefix:    cfg.Content.ImagePrefix,
		MediaPrefix:    cfg.Content.MediaPrefix,
	})
	a.articles = article.NewService(article.Repos{
		Articles:   articleRepo,
		Categories: categoryRepo,
		Tags:       tagRepo,
		Images:     imageRepo,
	}, edges, a.slugs, rw, a.logger.Named("article"), article.Limits{
		TitleMax:       cfg.Content.TitleMax,
		DescriptionMax: cfg.Content.DescriptionMax,
	})
}

func (a *App) newRouter() *gin.Engine {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.UseJSONFieldNames()

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.logger.Named("http")))

	router.Use(cors.New(corsConfig(a.cfg.AllowedOrigins, a.cfg.IsDev())))
	return router
}

// CreateAdmin creates or resets an admin account from a "user:pass" pair.
func (a *App) CreateAdmin(ctx context.Context, pair string) (*models.UserModel, error) {
	username, password, ok := strings.Cut(pair, ":")
	if !ok {
		return nil, errors.New(`expected "username:password"`)
	}
	return a.auth.EnsureAdmin(ctx, username, password, a.cfg.Auth.AdminGroup)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown closes the database and Redis connections.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.conn.Close(ctx); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}

// repository picks the datastore backend matching the connection.
func repository[T any](conn *database.Conn) datastore.Repository[T] {
	switch {
	case conn.SQL != nil:
		return datastore.NewGorm[T](conn.SQL)
	case conn.Mongo != nil:
		return datastore.NewMongo[T](conn.Mongo)
	default:
		return datastore.NewMemory[T]()
	}
}
