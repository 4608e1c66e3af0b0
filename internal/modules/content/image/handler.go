package image

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/pagination"
	"github.com/mx-space/press/internal/pkg/response"
	"github.com/mx-space/press/internal/pkg/validation"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin image routes. Images have no public surface;
// articles expose their images as signed URLs.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW ...gin.HandlerFunc) {
	admin := rg.Group("/admin/images", adminMW...)
	admin.GET("", h.list)
	admin.GET("/:id", h.get)
	admin.POST("", h.upload)
	admin.PUT("/:id", h.update)
	admin.PATCH("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	views, err := h.svc.List(c.Request.Context(), c.Query("kind"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views = pagination.Filter(views, c.Query("q"),
		func(v View) string { return v.Name },
		func(v View) string { return v.Caption },
		func(v View) string { return v.AltText },
		func(v View) string { return v.Path },
	)
	page, meta := pagination.Slice(views, pagination.FromContext(c))
	response.Paged(c, page, meta)
}

func (h *Handler) get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if v == nil {
		response.NotFoundMsg(c, "Image not found")
		return
	}
	response.OK(c, v)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.svc.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, fmt.Sprintf("File exceeds %d MB", limit>>20))
			return
		}
		response.Invalid(c, "invalid upload", validation.Single("file", "File is required"))
		return
	}
	if fh.Size > limit {
		response.PayloadTooLarge(c, fmt.Sprintf("File exceeds %d MB", limit>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	v, err := h.svc.Upload(c.Request.Context(), UploadInput{
		Kind:        c.PostForm("kind"),
		Filename:    fh.Filename,
		Data:        data,
		Title:       c.PostForm("title"),
		Caption:     c.PostForm("caption"),
		Description: c.PostForm("description"),
		AltText:     c.PostForm("altText"),
	})
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			response.PayloadTooLarge(c, fmt.Sprintf("File exceeds %d MB", limit>>20))
			return
		}
		response.Fail(c, err)
		return
	}
	response.Created(c, v)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateImageDTO
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
		response.NotFoundMsg(c, "Image not found")
		return
	}
	response.OK(c, v)
}

func (h *Handler) delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, ErrInUse):
		response.Conflict(c, "This image is used by an article and cannot be deleted")
	case errors.Is(err, datastore.ErrNotFound):
		response.NotFoundMsg(c, "Image not found")
	default:
		response.InternalError(c, err)
	}
}
