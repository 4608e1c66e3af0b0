package slug

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/response"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW ...gin.HandlerFunc) {
	admin := rg.Group("/admin/slug", adminMW...)
	admin.GET("", h.check)
}

// check derives the slug for name. With kind set it also reports whether the
// slug is free, ignoring the entity excludeId.
func (h *Handler) check(c *gin.Context) {
	derived := Derive(c.Query("name"))
	out := gin.H{"slug": derived}

	if kind := Kind(c.Query("kind")); kind != "" {
		if _, ok := h.resolver.finders[kind]; !ok {
			response.BadRequest(c, "unknown kind")
			return
		}
		available := false
		if derived != "" {
			ok, err := h.resolver.Unique(c.Request.Context(), kind, derived, c.Query("excludeId"))
			if err != nil {
				response.InternalError(c, err)
				return
			}
			available = ok
		}
		out["available"] = available
	}
	response.OK(c, out)
}
