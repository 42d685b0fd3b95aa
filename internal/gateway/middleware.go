package gateway

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/absolutelyright/server/internal/accesslog"
	"github.com/absolutelyright/server/internal/hooks"
	"github.com/absolutelyright/server/internal/logging"
	"github.com/absolutelyright/server/internal/version"
	"github.com/google/uuid"
)

type middlewareOptions struct {
	log       *logging.Logger
	origins   []string
	pageviews *accesslog.PageviewLog
	hooks     *hooks.Manager
}

// withMiddleware wraps a handler with the standard middleware chain.
func withMiddleware(handler http.Handler, opts middlewareOptions) http.Handler {
	h := handler
	h = noCacheMiddleware(h)
	h = pageviewMiddleware(h, opts.pageviews, opts.hooks)
	h = requestIDMiddleware(h)
	h = corsMiddleware(h, opts.origins)
	h = loggingMiddleware(h, opts.log)
	return h
}

// loggingMiddleware logs each HTTP request.
func loggingMiddleware(next http.Handler, log *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// requestIDMiddleware adds a unique request ID and the Server header to each response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		w.Header().Set("Server", version.UserAgent())
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && isOriginAllowed(origin, allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false // deny cross-origin by default when no origins are configured
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// noCacheMiddleware marks every response uncacheable. Handlers that want
// caching replace the headers with cacheFor.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setNoCache(w.Header())
		next.ServeHTTP(w, r)
	})
}

func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// cacheFor allows public caching of the response for the given duration.
func cacheFor(w http.ResponseWriter, d time.Duration) {
	h := w.Header()
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(d/time.Second)))
	h.Del("Pragma")
	h.Del("Expires")
}

// pageviewMiddleware records homepage views off the request path.
func pageviewMiddleware(next http.Handler, pv *accesslog.PageviewLog, hm *hooks.Manager) http.Handler {
	if pv == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accesslog.IsHomepage(r.Method, r.URL.Path) {
			path := r.URL.Path
			go pv.Record(path)
			hm.EmitAsync(context.WithoutCancel(r.Context()), hooks.EventPageview, map[string]any{
				"path": path,
			})
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
