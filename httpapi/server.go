package httpapi

import (
	"context"
	"strconv"
	"time"

	"gatekeeper/service"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the settings store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server exposes a read-only view of verification settings over HTTP
type Server struct {
	app      *fiber.App
	health   HealthChecker
	settings service.VerifySettingsService
}

// NewServer builds the fiber app and its routes
func NewServer(health HealthChecker, settings service.VerifySettingsService) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "gatekeeper",
			DisableStartupMessage: true,
		}),
		health:   health,
		settings: settings,
	}

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/guilds/:guildID/verification", s.handleGuildSettings)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	log.WithField("addr", addr).Info("Starting status HTTP server")
	return s.app.Listen(addr)
}

// Shutdown stops the listener, waiting for in-flight requests up to the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.health.Health(ctx); err != nil {
		log.WithError(err).Warn("Health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGuildSettings(c *fiber.Ctx) error {
	guildID, err := strconv.ParseInt(c.Params("guildID"), 10, 64)
	if err != nil || guildID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid guild id",
		})
	}

	settings, err := s.settings.GetSettings(c.UserContext(), guildID)
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"error":    err,
		}).Error("Failed to load verification settings for HTTP request")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load settings",
		})
	}

	if settings == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "guild not configured",
		})
	}

	return c.JSON(settings)
}
