package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gradebook/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRequestTimeout bounds every /api request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRoutes mounts extra routes, such as the API docs, on the router.
func WithRoutes(register func(chi.Router)) Option {
	return func(s *Server) {
		if register != nil {
			s.extra = append(s.extra, register)
		}
	}
}
