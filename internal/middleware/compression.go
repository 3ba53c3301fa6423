package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// CompressionMiddleware gzips responses for clients that accept it
type CompressionMiddleware struct {
	config  CompressionConfig
	stats   *CompressionStats
	writers sync.Pool
	buffers sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		writers: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
		buffers: sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

// Handler buffers the response and compresses it once every handler,
// error rendering included, has finished.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		body := cm.buffers.Get().(*bytes.Buffer)
		body.Reset()
		defer cm.buffers.Put(body)

		w := &bufferedWriter{ResponseWriter: c.Writer, body: body}
		c.Writer = w
		// a panic skips finish and the recovery handler writes directly
		defer func() { c.Writer = w.ResponseWriter }()

		c.Next()

		cm.finish(w)
	}
}

func (cm *CompressionMiddleware) finish(w *bufferedWriter) {
	data := w.body.Bytes()
	if len(data) == 0 {
		w.ResponseWriter.WriteHeaderNow()
		return
	}

	if len(data) < cm.config.MinSize || !cm.shouldCompress(w.Header().Get("Content-Type")) {
		cm.stats.RecordRequest(int64(len(data)), int64(len(data)), false)
		cm.writeRaw(w, data)
		return
	}

	compressed := cm.buffers.Get().(*bytes.Buffer)
	compressed.Reset()
	defer cm.buffers.Put(compressed)

	gz := cm.writers.Get().(*gzip.Writer)
	gz.Reset(compressed)
	_, err := gz.Write(data)
	if err == nil {
		err = gz.Close()
	}
	cm.writers.Put(gz)
	if err != nil {
		slog.Warn("Response compression failed", "error", err)
		cm.writeRaw(w, data)
		return
	}

	cm.stats.RecordRequest(int64(len(data)), int64(compressed.Len()), true)

	header := w.Header()
	header.Set("Content-Encoding", "gzip")
	header.Add("Vary", "Accept-Encoding")
	header.Del("Content-Length")
	if _, err := w.ResponseWriter.Write(compressed.Bytes()); err != nil {
		slog.Debug("Failed to write compressed response", "error", err)
	}
}

func (cm *CompressionMiddleware) writeRaw(w *bufferedWriter, data []byte) {
	if _, err := w.ResponseWriter.Write(data); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// clientAcceptsGzip checks if the client accepts gzip compression
func (cm *CompressionMiddleware) clientAcceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// shouldCompress checks if the content type should be compressed
func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}

// bufferedWriter holds the body back until the middleware decides how to
// encode it.
type bufferedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// Written reports buffered bodies as written so inner middleware sees the
// response the handler produced.
func (w *bufferedWriter) Written() bool {
	return w.body.Len() > 0 || w.ResponseWriter.Written()
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}
