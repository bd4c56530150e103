// Package trace logs each HTTP request and records its Prometheus metrics.
package trace

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	applog "billed/internal/log"
	"billed/internal/metrics"
)

// Middleware handles request tracing and logging. It expects chi's
// RequestID middleware to run first.
type Middleware struct {
	extractIP func(*http.Request) string
	now       func() time.Time
}

func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP, now: time.Now}
}

// RequestID returns the ID chi assigned to r, if any.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		ctx := r.Context()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := m.now().Sub(start)
		route := routePattern(r)

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		fields := applog.NewFields().
			WithRequestID(RequestID(r)).
			WithHTTPRequest(r.Method, r.URL.Path, route, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithHTTPResponse(status, duration.Milliseconds()).
			WithClientIP(clientIP)
		if r.Header.Get("HX-Request") == "true" {
			fields["htmx"] = true
		}
		slog.Log(ctx, applog.HTTPLevel(status), "HTTP request completed", fields.ToSlice()...)
	})
}

// routePattern returns the matched chi pattern so metrics stay low
// cardinality. Unmatched requests are grouped under "unmatched".
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
