package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers export HTTP routes and the middleware stack.
// Centralizing routes here ensures consistent identity and error behavior
// across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/export/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.identityMiddleware)
			r.Post("/requests", handler.requestExport)
		})

		// Token-gated flow: the export token itself is the credential from
		// here on, so no bearer identity is required.
		r.Post("/verification/request", handler.requestCode)
		r.Post("/verification/verify", handler.verifyCode)
		r.Get("/download", handler.download)
		r.Get("/status", handler.status)
	})

	return r
}
