// Package auth issues the bearer tokens that gate the admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/middleware"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/jwt"
	"github.com/mx-space/press/internal/pkg/response"
	"github.com/mx-space/press/internal/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown username and a wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid username or password")

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      *models.UserModel `json:"user"`
}

type Service struct {
	users  datastore.Repository[models.UserModel]
	tokens *jwt.Manager
	logger *zap.Logger
	now    func() time.Time
}

func NewService(users datastore.Repository[models.UserModel], tokens *jwt.Manager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, logger: logger, now: time.Now}
}

// Login checks the password and returns a token carrying the user's groups.
func (s *Service) Login(ctx context.Context, username, password, ip string) (string, *models.UserModel, error) {
	u, err := s.findByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Sign(u.ID, []string(u.Groups))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	now := s.now()
	if updated, err := s.users.Update(ctx, u.ID, map[string]any{
		"last_login_time": now,
		"last_login_ip":   ip,
	}); err != nil {
		s.logger.Warn("record login", zap.String("user", u.ID), zap.Error(err))
	} else {
		u = updated
	}
	return token, u, nil
}

// EnsureAdmin creates username in group, or resets the password of an existing
// account and adds it to group. It backs the --create-admin flag.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, group string) (*models.UserModel, error) {
	username = strings.TrimSpace(username)
	errs := validation.Errors{}
	if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	}
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	existing, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		u := &models.UserModel{
			Username: username,
			Name:     username,
			Password: string(hash),
			Groups:   models.StringArray{group},
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		return u, nil
	}

	groups := existing.Groups
	if !existing.InGroup(group) {
		groups = append(append(models.StringArray{}, groups...), group)
	}
	return s.users.Update(ctx, existing.ID, map[string]any{
		"password": string(hash),
		"groups":   groups,
	})
}

// Me returns the user behind id, or nil when the account is gone.
func (s *Service) Me(ctx context.Context, id string) (*models.UserModel, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *Service) findByUsername(ctx context.Context, username string) (*models.UserModel, error) {
	rows, err := s.users.List(ctx, datastore.Where("username", strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type Handler struct {
	svc    *Service
	tokens *jwt.Manager
}

func NewHandler(svc *Service, tokens *jwt.Manager) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// RegisterRoutes mounts /auth. loginMW runs in front of the login endpoint
// only (throttling); /auth/me sits behind the token check.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, loginMW ...gin.HandlerFunc) {
	a := rg.Group("/auth")
	handlers := append(append([]gin.HandlerFunc{}, loginMW...), h.login)
	a.POST("/login", handlers...)
	a.GET("/me", middleware.Auth(h.tokens), h.me)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	token, u, err := h.svc.Login(c.Request.Context(), dto.Username, dto.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": 0, "code": http.StatusUnauthorized, "message": "invalid username or password"})
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokens.TTL()),
		User:      u,
	})
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.Unauthorized(c)
		return
	}
	response.OK(c, u)
}
