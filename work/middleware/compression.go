// Package middleware holds the HTTP middleware shared by the API routes.
package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"vodmux/work/logger"
)

// Pooled writers at BestSpeed: API responses are small JSON bodies where
// throughput matters more than ratio.
var gzipPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	},
}

// gzipWriter compresses everything written through it while keeping header
// access on the original ResponseWriter.
type gzipWriter struct {
	gz *gzip.Writer
	http.ResponseWriter
	wroteHeader bool
}

func (w *gzipWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.gz.Write(b)
}

// Flush drains the compression buffer before flushing the connection, so
// streamed batches reach the client as they are produced.
func (w *gzipWriter) Flush() {
	w.gz.Flush()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Gzip is a mux-compatible middleware that compresses responses for clients
// advertising gzip support. Clients without it get the response unmodified.
func Gzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			if err := gz.Close(); err != nil {
				logger.Error("{middleware - Gzip} failed to close gzip writer for %s %s: %v", r.Method, r.URL.Path, err)
			}
			gzipPool.Put(gz)
		}()

		next.ServeHTTP(&gzipWriter{gz: gz, ResponseWriter: w}, r)
	})
}
