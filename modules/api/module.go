package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/roomchat/config"
	"github.com/example/roomchat/events"
	"github.com/example/roomchat/modules/channel"
	"github.com/example/roomchat/modules/moderation"
	"github.com/example/roomchat/modules/room"
	"github.com/example/roomchat/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// APIModule serves the chat over HTTP and WebSocket.
type APIModule struct {
	cfg        config.Config
	app        *fiber.App
	rooms      room.RoomPort
	moderation moderation.ModerationPort
	channel    *channel.Channel
	controller *session.Controller
	hub        *Hub
	logger     types.Logger

	roomsCreated atomic.Int64
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)
var _ mono.EventConsumerModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg config.Config, logger types.Logger) *APIModule {
	return &APIModule{
		cfg:    cfg,
		hub:    NewHub(),
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"room", "moderation"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "room":
		adapter, err := room.NewAdapter(container, m.cfg.RoomCodeLength)
		if err != nil {
			m.logger.Error("Failed to create room adapter", "error", err)
			return
		}
		m.rooms = adapter
	case "moderation":
		m.moderation = moderation.NewAdapter(container, m.logger)
	}
}

// SetChannel sets the message channel (called from main.go).
func (m *APIModule) SetChannel(ch *channel.Channel) {
	m.channel = ch
}

// RegisterEventConsumers counts rooms created anywhere in the application.
func (m *APIModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomCreatedV1, m.handleRoomCreated, m); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	return nil
}

func (m *APIModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.roomsCreated.Add(1)
	m.logger.Debug("Room created", "code", event.RoomCode, "createdBy", event.CreatedBy)
	return nil
}

// Start builds the session controller and starts the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.rooms == nil {
		return fmt.Errorf("room adapter dependency not set")
	}
	if m.moderation == nil {
		return fmt.Errorf("moderation adapter dependency not set")
	}
	if m.channel == nil {
		return fmt.Errorf("message channel dependency not set")
	}

	m.controller = session.NewController(m.moderation, m.rooms, m.channel, m.logger)
	m.app = m.newApp()

	addr := ":" + m.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// Stop closes live sessions and shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server", "clients", m.hub.ClientCount())
	m.hub.CloseAll()
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: m.healthDetails(),
	}
}

func (m *APIModule) healthDetails() map[string]any {
	details := map[string]any{
		"port":              m.cfg.Port,
		"connected_clients": m.hub.ClientCount(),
		"rooms_created":     m.roomsCreated.Load(),
	}
	if m.channel != nil {
		rooms, subscribers := m.channel.Stats()
		details["live_rooms"] = rooms
		details["subscribers"] = subscribers
	}
	return details
}

func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(m.loggerMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(m.cfg.CORSOrigins),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	m.setupRoutes(app)
	return app
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware logs every request except WebSocket upgrades.
func (m *APIModule) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		m.logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start))
		return err
	}
}
