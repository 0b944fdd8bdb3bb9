package cache

import (
	"bytes"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware serves and fills the cache for GET requests. key returns the
// cache key for a request, or "" when the request must not be cached.
func (s *Store) Middleware(key func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		if cached, found := s.Read(k); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		// only successful HTML responses are kept
		if c.Writer.Status() == http.StatusOK &&
			c.Writer.Header().Get("Content-Type") == "text/html; charset=utf-8" {
			if err := s.Write(k, writer.body.String()); err != nil {
				log.Printf("cache write %s: %v", k, err)
			}
		}
	}
}
