// Package api exposes the catalog over HTTP. Every body, success or
// failure, is written through the envelope package.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/envelope"
)

// Config configures the router
type Config struct {
	// JWTAuth verifies identity tokens. Required.
	JWTAuth *jwtauth.JWTAuth
	// MaxUploadBytes caps request bodies; 0 disables the cap.
	MaxUploadBytes int64
	// RestrictRegistration requires a token to register new users.
	RestrictRegistration bool
	// RequestTimeout cancels request contexts after the duration; 0 disables it.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the /api/v1 router for svc.
func NewRouter(svc catalog.Service, cfg Config) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	contents := NewContentHandler(svc)
	metadata := NewMetadataHandler(svc)
	users := NewUserHandler(svc)
	requireIdentity := RequireIdentity(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(RequestSizeLimit(cfg.MaxUploadBytes))
	r.Use(jwtauth.Verifier(cfg.JWTAuth))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.Fail(w, r, envelope.NewHTTPError(http.StatusNotFound, envelope.Detail("Not found."), nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		envelope.Fail(w, r, envelope.NewHTTPError(http.StatusMethodNotAllowed,
			envelope.Detail("Method \""+r.Method+"\" not allowed."), nil))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/contents", func(r chi.Router) {
			contents.Routes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireIdentity)
				contents.WriteRoutes(r)
			})
		})

		r.Route("/metadata-types", func(r chi.Router) {
			metadata.TypeRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireIdentity)
				metadata.TypeWriteRoutes(r)
			})
		})

		r.Route("/metadata", func(r chi.Router) {
			metadata.TagRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireIdentity)
				metadata.TagWriteRoutes(r)
			})
		})

		r.Route("/users", func(r chi.Router) {
			users.Routes(r)
			if cfg.RestrictRegistration {
				r.With(requireIdentity).Post("/", users.RegisterUser)
			} else {
				r.Post("/", users.RegisterUser)
			}
		})
	})

	return r
}
