package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name      string
		q         Query
		want      []int
		totalPage int
		hasNext   bool
	}{
		{name: "first page", q: Query{Page: 1, Size: 3}, want: []int{1, 2, 3}, totalPage: 3, hasNext: true},
		{name: "last partial page", q: Query{Page: 3, Size: 3}, want: []int{7}, totalPage: 3},
		{name: "past the end", q: Query{Page: 4, Size: 3}, want: []int{}, totalPage: 3},
		{name: "exact fit", q: Query{Page: 1, Size: 7}, want: items, totalPage: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta := Slice(items, tt.q)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(7), meta.Total)
			assert.Equal(t, tt.totalPage, meta.TotalPage)
			assert.Equal(t, tt.hasNext, meta.HasNextPage)
		})
	}
}

func TestSliceEmpty(t *testing.T) {
	got, meta := Slice([]string{}, Query{Page: 1, Size: 10})
	assert.Empty(t, got)
	assert.Equal(t, 0, meta.TotalPage)
}

func TestFilter(t *testing.T) {
	type row struct{ title, url string }
	rows := []row{{"Hello Go", "hello-go"}, {"Rust notes", "rust"}, {"Misc", "go-misc"}}
	fields := []func(row) string{
		func(r row) string { return r.title },
		func(r row) string { return r.url },
	}

	assert.Len(t, Filter(rows, "", fields...), 3)
	assert.Len(t, Filter(rows, "  GO ", fields...), 2)
	assert.Empty(t, Filter(rows, "python", fields...))
}

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: 10}},
		{"page=3&size=20", Query{Page: 3, Size: 20}},
		{"page=abc&size=25", Query{Page: 1, Size: 25}},
		{"page=0&size=1000", Query{Page: 1, Size: MaxSize}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)
		assert.Equal(t, tt.want, FromContext(c), tt.query)
	}
}
