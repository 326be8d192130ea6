package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Skip: 0}},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10, Skip: 20}},
		{"?page=0&limit=500", Params{Page: 1, Limit: 100, Skip: 0}},
		{"?page=abc&limit=-4", Params{Page: 1, Limit: 20, Skip: 0}},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/courses"+tc.query, nil)
		assert.Equal(t, tc.want, Extract(c), tc.query)
	}
}

func TestMetadataFrom(t *testing.T) {
	meta := MetadataFrom(45, New(2, 20))

	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNextPage)
	assert.True(t, meta.HasPrevPage)

	meta = MetadataFrom(0, New(1, 20))
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNextPage)
	assert.False(t, meta.HasPrevPage)
}
