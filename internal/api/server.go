package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/appdraft/project-engine/internal/health"
	"github.com/appdraft/project-engine/internal/metrics"
	"github.com/appdraft/project-engine/internal/project"
	"github.com/appdraft/project-engine/internal/requestid"
)

// ServerConfig holds configuration for the project API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	CORSOrigins string
}

// Server is the project API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures a new project API server.
func NewServer(
	cfg ServerConfig,
	store *project.Store,
	checker *health.Checker,
	collector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	handlers := NewHandlers(store, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, collector, logger)
	s.setupRoutes(handlers, checker, collector)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, collector *metrics.Metrics, logger zerolog.Logger) {
	// Recovery middleware
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	// CORS middleware
	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Actor-ID",
			AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		}))
	}

	// Request metrics. Route path is resolved after the handler ran, so
	// counters are labelled with the pattern, not the raw URL.
	if collector != nil {
		s.app.Use(func(c *fiber.Ctx) error {
			path := c.Path()
			if path == "/healthz" || path == "/readyz" || path == "/metrics" {
				return c.Next()
			}

			start := time.Now()
			err := c.Next()

			status := c.Response().StatusCode()
			if err != nil {
				status = fiber.StatusInternalServerError
				var fe *fiber.Error
				if errors.As(err, &fe) {
					status = fe.Code
				}
			}

			route := c.Route().Path
			collector.RecordRequest(route, strconv.Itoa(status))
			collector.ObserveDuration(route, time.Since(start).Seconds())
			return err
		})
	}

	// Auth middleware
	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, logger))

	// Audit middleware (log every request)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		// Skip noisy probe logging
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("actor", actorFrom(c)).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("project api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, checker *health.Checker, collector *metrics.Metrics) {
	// Probe endpoints (no auth required; the auth middleware skips them)
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", func(c *fiber.Ctx) error {
		checks := checker.RunAll(c.Context())
		overall := "ready"
		code := fiber.StatusOK
		for _, st := range checks {
			if st == health.StatusDown {
				overall = "not_ready"
				code = fiber.StatusServiceUnavailable
				break
			}
		}
		return c.Status(code).JSON(fiber.Map{"status": overall, "checks": checks})
	})

	// Prometheus metrics
	if collector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	} else {
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString("# No metrics collector configured\n")
		})
	}

	// API v1 routes
	v1 := s.app.Group("/api/v1")

	// Project endpoints
	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Post("/projects/import", h.ImportProject)
	v1.Get("/projects/:id", h.GetProject)
	v1.Patch("/projects/:id", h.UpdateProject)
	v1.Delete("/projects/:id", h.DeleteProject)

	// File endpoints
	v1.Post("/projects/:id/files", h.CreateFile)
	v1.Get("/projects/:id/files/*", h.GetFile)
	v1.Put("/projects/:id/files/*", h.UpdateFile)
	v1.Delete("/projects/:id/files/*", h.DeleteFile)

	// Version endpoints
	v1.Post("/projects/:id/versions", h.CreateVersion)
	v1.Get("/projects/:id/versions", h.ListVersions)
	v1.Post("/projects/:id/versions/:versionID/revert", h.RevertVersion)

	// Branch endpoints
	v1.Post("/projects/:id/branches", h.CreateBranch)
	v1.Get("/projects/:id/branches", h.ListBranches)
	v1.Post("/projects/:id/branches/switch", h.SwitchBranch)
	v1.Post("/projects/:id/branches/merge", h.MergeBranch)

	// Collaborator endpoints
	v1.Post("/projects/:id/collaborators", h.AddCollaborator)
	v1.Delete("/projects/:id/collaborators/:userID", h.RemoveCollaborator)
	v1.Patch("/projects/:id/collaborators/:userID", h.UpdateCollaborator)

	// Export
	v1.Post("/projects/:id/export", h.ExportProject)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	s.logger.Info().Str("addr", addr).Msg("project api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("project api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		// Don't leak internal details
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
