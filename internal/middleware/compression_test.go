package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCompressionRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(`["`+strings.Repeat("a", 4096)+`"]`))
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", []byte(strings.Repeat("b", 4096)))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return r
}

func request(r http.Handler, path string, gzipped bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if gzipped {
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCompressionMiddleware(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := setupCompressionRouter(cm)

	t.Run("large json is compressed", func(t *testing.T) {
		w := request(r, "/large", true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

		gz, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.Equal(t, `["`+strings.Repeat("a", 4096)+`"]`, string(body))
	})

	tests := []struct {
		name           string
		path           string
		gzipped        bool
		expectedStatus int
	}{
		{name: "client without gzip", path: "/large", gzipped: false, expectedStatus: http.StatusOK},
		{name: "small responses stay raw", path: "/small", gzipped: true, expectedStatus: http.StatusOK},
		{name: "unlisted content types stay raw", path: "/binary", gzipped: true, expectedStatus: http.StatusOK},
		{name: "empty body keeps its status", path: "/empty", gzipped: true, expectedStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, tt.path, tt.gzipped)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
		})
	}

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Equal(t, int64(3), stats["total_requests"])
}

func TestCompressionMiddleware_InnerWriterSeesBody(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	gin.SetMode(gin.TestMode)

	var written bool
	r := gin.New()
	r.Use(cm.Handler())
	r.Use(func(c *gin.Context) {
		c.Next()
		written = c.Writer.Written()
	})
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})

	w := request(r, "/", true)
	assert.Equal(t, "hello", w.Body.String())
	assert.True(t, written)
}
