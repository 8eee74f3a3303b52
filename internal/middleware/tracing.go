package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	internalhttputil "github.com/travelties/service_layer/internal/httputil"
	"github.com/travelties/service_layer/pkg/logger"
)

const maxTraceIDLen = 64

// TracingMiddleware assigns each request a trace ID, logs it on completion
// and turns handler panics into 500 responses.
type TracingMiddleware struct {
	logger *logger.Logger
	quiet  map[string]bool
}

// NewTracingMiddleware creates a new tracing middleware. Requests to
// quietPaths are logged at debug level only.
func NewTracingMiddleware(log *logger.Logger, quietPaths ...string) *TracingMiddleware {
	if log == nil {
		log = logger.NewDefault("http")
	}
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}
	return &TracingMiddleware{logger: log, quiet: quiet}
}

// Handler returns the tracing middleware handler
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if !validTraceID(traceID) {
			traceID = logger.NewTraceID()
		}
		ctx := logger.WithTraceID(r.Context(), traceID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Trace-ID", traceID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				m.logger.WithContext(ctx).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					Error("handler panicked")
				if !rw.written {
					internalhttputil.InternalError(rw, "internal server error")
				}
			}
			if m.quiet[r.URL.Path] && rw.statusCode < 400 {
				m.logger.WithContext(ctx).WithField("path", r.URL.Path).Debug("request completed")
				return
			}
			m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		}()

		next.ServeHTTP(rw, r)
	})
}

// validTraceID accepts short client trace IDs made of URL-safe characters.
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
