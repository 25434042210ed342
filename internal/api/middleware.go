package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxRequestBodySize caps request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

const (
	defaultCORSMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	defaultCORSHeaders = "Authorization, Content-Type, X-Request-ID"
	corsMaxAge         = "86400"
)

type contextKey string

const ctxKeyRequestID contextKey = "request_id"

// requestID returns the id assigned by requestIDMiddleware, or "".
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// requestIDMiddleware honours a client-supplied X-Request-ID and otherwise
// assigns a random UUID. The id is echoed back on the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// loggingMiddleware writes one log line per request and, when a recorder is
// wired, one request sample keyed by route pattern.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		log := s.logger.With("request_id", requestID(r.Context()))
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.written,
			"duration_ms", elapsed.Milliseconds(),
		}
		if sw.status >= http.StatusInternalServerError {
			log.Warn("http request", attrs...)
		} else {
			log.Info("http request", attrs...)
		}

		if s.metrics != nil {
			s.metrics.WriteRequest(r.Method, routePattern(r), sw.status, elapsed)
		}
	})
}

// routePattern is the matched chi pattern, e.g. /users/{id}, so ids do not
// become metric series.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return "unmatched"
	}
	return rctx.RoutePattern()
}

// recoveryMiddleware turns a handler panic into a 500 and a log line.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			s.logger.Error("handler panic",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID(r.Context()),
			)
			writeInternalError(w, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflight requests itself and decorates responses
// for allowed origins. No configured origins means any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	methods := defaultCORSMethods
	if len(s.cfg.CORS.AllowedMethods) > 0 {
		methods = strings.Join(s.cfg.CORS.AllowedMethods, ", ")
	}
	headers := defaultCORSHeaders
	if len(s.cfg.CORS.AllowedHeaders) > 0 {
		headers = strings.Join(s.cfg.CORS.AllowedHeaders, ", ")
	}
	origins := s.cfg.CORS.AllowedOrigins

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// bodySizeLimitMiddleware wraps the body so reads past the cap fail with
// *http.MaxBytesError.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Flush passes through so the MCP event stream is not buffered.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
