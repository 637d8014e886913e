// Package hostapi exposes a node registry over HTTP so an external editor can
// discover node schemas and invoke nodes.
//
// Routes:
//
//	GET  /health
//	GET  /object_info
//	GET  /object_info/{node}
//	POST /nodes/{node}/invoke
package hostapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skosovsky/doubao"
)

// MaxRequestBody caps invoke request bodies (images arrive inline as base64).
const MaxRequestBody = 32 << 20

// NewRouter returns the bridge handler for reg. reg should be sealed.
func NewRouter(reg *doubao.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{reg: reg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/object_info", func(r chi.Router) {
		r.Get("/", h.objectInfo)
		r.Get("/{node}", h.nodeInfo)
	})
	r.Post("/nodes/{node}/invoke", h.invoke)
	return r
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"elapsed", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
