package article

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/pagination"
	"github.com/mx-space/press/internal/pkg/response"
	"github.com/mx-space/press/internal/pkg/validation"
)

const maxPublicLimit = 100

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW ...gin.HandlerFunc) {
	articles := rg.Group("/articles")
	articles.GET("", h.list)
	articles.GET("/:slug", h.getBySlug)

	admin := rg.Group("/admin/articles", adminMW...)
	admin.GET("", h.adminList)
	admin.GET("/:id", h.getForEdit)
	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.PATCH("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

// list serves the public listing: published only, optionally by category or
// tag slug, capped by limit.
func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > maxPublicLimit {
		limit = maxPublicLimit
	}
	views, err := h.svc.List(c.Request.Context(), ListOptions{
		PublishedOnly: true,
		CategoryURL:   c.Query("category"),
		TagURL:        c.Query("tag"),
		Limit:         limit,
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, views)
}

func (h *Handler) getBySlug(c *gin.Context) {
	v, err := h.svc.GetPublic(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if v == nil {
		response.NotFoundMsg(c, "Article not found")
		return
	}
	response.OK(c, v)
}

// adminList searches every article by title, url and description, optionally
// keeps one status, and pages the result.
func (h *Handler) adminList(c *gin.Context) {
	views, err := h.svc.List(c.Request.Context(), ListOptions{
		CategoryURL: c.Query("category"),
		TagURL:      c.Query("tag"),
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views = pagination.Filter(views, c.Query("q"),
		func(v View) string { return v.Title },
		func(v View) string { return v.URL },
		func(v View) string { return v.Description },
	)
	if status := Status(c.Query("status")); status != "" {
		kept := views[:0]
		for _, v := range views {
			if v.Status == status {
				kept = append(kept, v)
			}
		}
		views = kept
	}
	page, meta := pagination.Slice(views, pagination.FromContext(c))
	response.Paged(c, page, meta)
}

func (h *Handler) getForEdit(c *gin.Context) {
	v, err := h.svc.GetForEdit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if v == nil {
		response.NotFoundMsg(c, "Article not found")
		return
	}
	response.OK(c, v)
}

func (h *Handler) create(c *gin.Context) {
	var dto ArticleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	v, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, v)
}

func (h *Handler) update(c *gin.Context) {
	var dto ArticleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	v, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if v == nil {
		response.NotFoundMsg(c, "Article not found")
		return
	}
	response.OK(c, v)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			response.NotFoundMsg(c, "Article not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
