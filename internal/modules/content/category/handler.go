package category

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
	cats := rg.Group("/categories")
	cats.GET("", h.list)
	cats.GET("/:slug", h.getBySlug)

	admin := rg.Group("/admin/categories", adminMW...)
	admin.GET("", h.adminList)
	admin.GET("/:id", h.get)
	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.PATCH("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	cats, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cats)
}

func (h *Handler) adminList(c *gin.Context) {
	cats, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	cats = pagination.Filter(cats, c.Query("q"),
		func(m models.CategoryModel) string { return m.Category },
		func(m models.CategoryModel) string { return m.URL },
		func(m models.CategoryModel) string { return m.Description },
	)
	page, meta := pagination.Slice(cats, pagination.FromContext(c))
	response.Paged(c, page, meta)
}

func (h *Handler) getBySlug(c *gin.Context) {
	cat, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if cat == nil {
		response.NotFoundMsg(c, "Category not found")
		return
	}
	response.OK(c, cat)
}

func (h *Handler) get(c *gin.Context) {
	cat, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if cat == nil {
		response.NotFoundMsg(c, "Category not found")
		return
	}
	response.OK(c, cat)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	cat, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, cat)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Invalid(c, "invalid request body", validation.FromBinding(err))
		return
	}
	cat, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if cat == nil {
		response.NotFoundMsg(c, "Category not found")
		return
	}
	response.OK(c, cat)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			response.NotFoundMsg(c, "Category not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
