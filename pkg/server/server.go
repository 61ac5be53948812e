// Package server exposes the directive classifier over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/audit"
	"github.com/teslashibe/go-rover/pkg/classify"
	"github.com/teslashibe/go-rover/pkg/directive"
)

// Classifier is what the upload handler needs from the model.
type Classifier interface {
	Classify(ctx context.Context, img []byte) (classify.Result, error)
	Labels() directive.Table
}

var _ Classifier = (*classify.Classifier)(nil)

// Stats is a JSON view of the request counters.
type Stats struct {
	Requests    uint64 `json:"requests"`
	Rejected    uint64 `json:"rejected"`
	Failed      uint64 `json:"failed"`
	AuditErrors uint64 `json:"audit_errors"`
	Forward     uint64 `json:"forward"`
	Left        uint64 `json:"left"`
	Right       uint64 `json:"right"`
	Stop        uint64 `json:"stop"`
}

// Server is the classification HTTP service.
type Server struct {
	app        *fiber.App
	cfg        Config
	classifier Classifier
	store      audit.Store
	logger     *slog.Logger
	metrics    *metrics
}

// New builds the service. A nil store disables the audit trail.
func New(c Classifier, store audit.Store, cfg Config) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("server: classifier required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = audit.Discard{}
	}

	s := &Server{
		cfg:        cfg,
		classifier: c,
		store:      store,
		logger:     log.Component(cfg.Logger, "server"),
		metrics:    newMetrics(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "classifierd",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Post("/upload", s.handleUpload)
	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/labels", s.handleLabels)
	api.Get("/stats", s.handleStats)

	s.app = app
	return s, nil
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("listening", "addr", s.cfg.Addr, "backend", s.cfg.Backend)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Stats returns a snapshot of the request counters.
func (s *Server) Stats() Stats {
	m := s.metrics
	return Stats{
		Requests:    counterValue(m.requests),
		Rejected:    counterValue(m.rejected),
		Failed:      counterValue(m.failed),
		AuditErrors: counterValue(m.auditErrors),
		Forward:     m.directiveCount(directive.Forward),
		Left:        m.directiveCount(directive.Left),
		Right:       m.directiveCount(directive.Right),
		Stop:        m.directiveCount(directive.Stop),
	}
}

// errorHandler renders framework errors (body limit, 404) as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
