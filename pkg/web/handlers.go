package web

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/navigation"
)

// handleStatus returns the current navigation snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleEvents returns recent events, optionally only the last ?limit=N
func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	events := append([]navigation.Event(nil), s.events...)
	s.eventsMu.RUnlock()

	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	return c.JSON(events)
}

// handleFrame returns the last frame sent for classification
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.frameMu.RLock()
	frame, at := s.frame, s.frameAt
	s.frameMu.RUnlock()

	if frame == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame yet"})
	}
	c.Set(fiber.HeaderLastModified, at.UTC().Format(http.TimeFormat))
	c.Type("jpg")
	return c.Send(frame)
}

// handleStatusWS sends the current status, then every update
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	if client == nil {
		return
	}
	if data, err := json.Marshal(s.Status()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	client.Run()
}

// handleEventsWS streams obstacle, directive and maneuver events
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.eventHub, conn)
	if client == nil {
		return
	}
	client.Run()
}

// handleCameraWS streams classified frames as binary messages
func (s *Server) handleCameraWS(conn *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, conn)
	if client == nil {
		return
	}
	client.Run()
}
