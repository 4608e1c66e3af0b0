package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/datastore"
	"github.com/mx-space/press/internal/pkg/validation"
)

// Fail maps a service error onto the error envelope: field validation errors
// become 422, a datastore miss 404, anything else 500.
func Fail(c *gin.Context, err error) {
	if fields, ok := validation.As(err); ok {
		Invalid(c, "validation failed", fields)
		return
	}
	if errors.Is(err, datastore.ErrNotFound) {
		NotFound(c)
		return
	}
	InternalError(c, err)
}
