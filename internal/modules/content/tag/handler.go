package tag

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/models"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/pagination"
	"github.com/mx-space/press/internal/pkg/response"
	"github.com/mx-space/press/internal/pkg/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW ...gin.HandlerFunc) {
	tags := rg.Group("/tags")
	tags.GET("", h.list)
	tags.GET("/:slug", h.getBySlug)

	admin := rg.Group("/admin/tags", adminMW...)
	admin.GET("", h.adminList)
	admin.GET("/:id", h.get)
	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.PATCH("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	tags, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, tags)
}

func (h *Handler) adminList(c *gin.Context) {
	tags, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	tags = pagination.Filter(tags, c.Query("q"),
		func(m models.TagModel) string { return m.Tag },
		func(m models.TagModel) string { return m.URL },
		func(m models.TagModel) string { return m.Description },
	)
	page, meta := pagination.Slice(tags, pagination.FromContext(c))
	response.Paged(c, page, meta)
}

func (h *Handler) getBySlug(c *gin.Context) {
	t, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if t == nil {
		response.NotFoundMsg(c, "Tag not found")
		return
	}
	response.OK(c, t)
}

func (h *Handler) get(c *gin.Context) {
	t, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if t == nil {
		response.NotFoundMsg(c, "Tag not found")
		return
	}
	response.OK(c, t)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateTagDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	t, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, t)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateTagDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	t, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if t == nil {
		response.NotFoundMsg(c, "Tag not found")
		return
	}
	response.OK(c, t)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			response.NotFoundMsg(c, "Tag not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
