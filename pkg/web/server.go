// Package web provides a live dashboard for the rover's navigation state
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/navigation"
)

//go:embed static
var static embed.FS

// maxEvents bounds the event history kept for /api/events.
const maxEvents = 200

// Server is the web dashboard server. It implements navigation.Observer.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	// Latest controller snapshot
	status   navigation.Status
	statusMu sync.RWMutex

	// Recent non-poll events, oldest first
	events   []navigation.Event
	eventsMu sync.RWMutex

	// Last frame sent for classification
	frame   []byte
	frameAt time.Time
	frameMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	eventHub  *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates a dashboard listening on addr, e.g. ":8080".
func NewServer(addr string, logger *slog.Logger) *Server {
	logger = log.Component(logger, "web")
	s := &Server{
		addr:      addr,
		logger:    logger,
		events:    make([]navigation.Event, 0, maxEvents),
		statusHub: hub.New("status", logger),
		eventHub:  hub.New("events", logger),
		cameraHub: hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	sub, _ := fs.Sub(static, "static")
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(sub),
		Index: "index.html",
	}))

	s.app = app
	return s
}

// App returns the Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// Observe records a controller event and broadcasts it. It never blocks.
func (s *Server) Observe(e navigation.Event) {
	s.statusMu.Lock()
	s.status = e.Status
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(e.Status); err != nil {
		s.logger.Debug("status encode failed", "error", err)
	}

	if e.Kind == navigation.EventPoll {
		return
	}

	s.eventsMu.Lock()
	if len(s.events) == maxEvents {
		copy(s.events, s.events[1:])
		s.events = s.events[:maxEvents-1]
	}
	s.events = append(s.events, e)
	s.eventsMu.Unlock()

	if err := s.eventHub.BroadcastJSON(e); err != nil {
		s.logger.Debug("event encode failed", "error", err)
	}
}

// SetFrame stores the latest camera frame and pushes it to viewers.
func (s *Server) SetFrame(jpeg []byte) {
	frame := append([]byte(nil), jpeg...)

	s.frameMu.Lock()
	s.frame = frame
	s.frameAt = time.Now()
	s.frameMu.Unlock()

	s.cameraHub.BroadcastBinary(frame)
}

// Status returns the last observed snapshot.
func (s *Server) Status() navigation.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

var _ navigation.Observer = (*Server)(nil)
