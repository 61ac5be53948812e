package server

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error texts returned for rejected uploads.
const (
	msgNoFilePart     = "No file part"
	msgNoSelectedFile = "No selected file"
	msgEmptyFile      = "Empty file"
)

// handleUpload classifies one image and answers with its directive.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	s.metrics.requests.Inc()

	data, msg := s.readUpload(c)
	if msg != "" {
		s.metrics.rejected.Inc()
		s.logger.Debug("upload rejected", "reason", msg, "ip", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	path, err := s.store.Save(data)
	if err != nil {
		s.metrics.auditErrors.Inc()
		if s.cfg.StrictAudit {
			s.metrics.failed.Inc()
			s.logger.Error("failed to store upload", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to store upload",
			})
		}
		s.logger.Warn("failed to store upload, continuing", "error", err)
		path = ""
	}

	res, err := s.classifier.Classify(c.UserContext(), data)
	if err != nil {
		s.metrics.failed.Inc()
		if path != "" {
			if rmErr := s.store.Remove(path); rmErr != nil {
				s.logger.Warn("failed to remove upload", "path", path, "error", rmErr)
			}
		}
		s.logger.Error("classification failed", "bytes", len(data), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	s.metrics.classified(res.Directive, time.Duration(res.LatencyMs)*time.Millisecond)
	s.logger.Info("classified",
		"directive", res.Directive.String(),
		"class", res.ClassIndex,
		"latency_ms", res.LatencyMs,
		"file", path,
	)

	c.Set("X-Class-Index", strconv.Itoa(res.ClassIndex))
	if wantsText(c) {
		return c.SendString(res.Directive.String())
	}
	return c.JSON(res.Directive.String())
}

// readUpload extracts the image bytes, or returns the rejection message.
func (s *Server) readUpload(c *fiber.Ctx) ([]byte, string) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, msgNoFilePart
	}

	files := form.File[s.cfg.FieldName]
	if len(files) == 0 {
		// a part with an empty filename is parsed as a plain value
		if _, ok := form.Value[s.cfg.FieldName]; ok {
			return nil, msgNoSelectedFile
		}
		return nil, msgNoFilePart
	}

	fh := files[0]
	if fh.Filename == "" {
		return nil, msgNoSelectedFile
	}
	if fh.Size == 0 {
		return nil, msgEmptyFile
	}

	f, err := fh.Open()
	if err != nil {
		return nil, msgEmptyFile
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return nil, msgEmptyFile
	}
	return data, ""
}

func wantsText(c *fiber.Ctx) bool {
	if strings.EqualFold(c.Query("format"), "text") {
		return true
	}
	return strings.HasPrefix(c.Get(fiber.HeaderAccept), fiber.MIMETextPlain)
}

// handleHealth reports liveness and the loaded backend.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"backend": s.cfg.Backend,
	})
}

// handleLabels returns the index to directive table.
func (s *Server) handleLabels(c *fiber.Ctx) error {
	return c.JSON(s.classifier.Labels())
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.Stats())
}
