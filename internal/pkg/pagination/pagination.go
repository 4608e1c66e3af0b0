package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/response"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// FromContext extracts and validates pagination params from the request. A
// missing or invalid page means page 1, which is how clients reset after
// changing size.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.DefaultQuery("page", "1"), DefaultPage)
	size := parseIntOr(c.DefaultQuery("size", "10"), DefaultSize)

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Query{Page: page, Size: size}
}

// Slice returns the q.Page-th window of items and its metadata. Pages past the
// end yield an empty window.
func Slice[T any](items []T, q Query) ([]T, response.Pagination) {
	if q.Size < 1 {
		q.Size = DefaultSize
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	total := len(items)
	totalPage := (total + q.Size - 1) / q.Size

	start := (q.Page - 1) * q.Size
	window := []T{}
	if start < total {
		end := min(start+q.Size, total)
		window = items[start:end]
	}

	return window, response.Pagination{
		Total:       int64(total),
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}
}

// Filter keeps the items where any field contains term, ignoring case. An empty
// term keeps everything.
func Filter[T any](items []T, term string, fields ...func(T) string) []T {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field(item)), term) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
