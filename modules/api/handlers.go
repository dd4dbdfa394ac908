package api

import (
	"context"
	"encoding/json"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/moderation"
	"github.com/example/roomchat/modules/room"
	"github.com/example/roomchat/modules/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	api := app.Group("/api/v1")
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:code", m.getRoom)
	api.Get("/rooms/:code/messages", m.getMessages)
	api.Post("/moderation/check", m.checkText)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: m.healthDetails(),
	})
}

// createRoom handles POST /api/v1/rooms.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	// A throwaway session applies the same validation and moderation as
	// the live surface.
	sess := m.controller.NewSession(nil)
	defer sess.Close()

	code, err := sess.Create(c.UserContext(), req.Username)
	if err != nil {
		return sessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(RoomResponse{
		Code:      code,
		CreatedBy: sess.Username(),
		Exists:    true,
	})
}

// getRoom handles GET /api/v1/rooms/:code.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	code := c.Params("code")

	exists, err := m.rooms.RoomExists(c.UserContext(), code)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "store_error",
			Message: "Failed to look up room",
		})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: session.MsgRoomNotFound,
		})
	}

	return c.JSON(RoomResponse{Code: code, Exists: true})
}

// getMessages handles GET /api/v1/rooms/:code/messages.
func (m *APIModule) getMessages(c *fiber.Ctx) error {
	code := c.Params("code")

	exists, err := m.rooms.RoomExists(c.UserContext(), code)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "store_error",
			Message: "Failed to look up room",
		})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: session.MsgRoomNotFound,
		})
	}

	messages, err := m.channel.Messages(c.UserContext(), code)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "store_error",
			Message: "Failed to load messages",
		})
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(MessagesResponse{RoomCode: code, Messages: messages})
}

// checkText handles POST /api/v1/moderation/check.
func (m *APIModule) checkText(c *fiber.Ctx) error {
	var req CheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	verdict, err := m.moderation.Check(c.UserContext(), req.Text)
	if err != nil {
		m.logger.Warn("Moderation service error, allowing text", "error", err)
		verdict = moderation.Verdict{FailedOpen: true}
	}
	return c.JSON(verdict)
}

// sessionError maps a session failure to an HTTP response.
func sessionError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "server_error"

	switch session.KindOf(err) {
	case session.KindValidation:
		status, code = fiber.StatusBadRequest, "validation_error"
	case session.KindModerationBlocked:
		status, code = fiber.StatusUnprocessableEntity, "moderation_blocked"
	case session.KindNotFound:
		status, code = fiber.StatusNotFound, "not_found"
	case session.KindInvalidState:
		status, code = fiber.StatusConflict, "invalid_state"
	case session.KindStore:
		status, code = fiber.StatusServiceUnavailable, "store_error"
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: session.UserMessage(err),
	})
}

// handleWebSocket handles WebSocket connections at /ws. Each connection
// drives one session.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	client := &Client{
		ID:   uuid.New().String(),
		Conn: c,
	}
	client.Session = m.controller.NewSession(func(snap domain.Snapshot) {
		messages := snap.Messages
		if messages == nil {
			messages = []domain.Message{}
		}
		if err := client.Send(SnapshotMessage{
			Type:     WSTypeSnapshot,
			RoomCode: snap.RoomCode,
			Messages: messages,
		}); err != nil {
			m.logger.Debug("Failed to write frame", "client", client.ID, "type", WSTypeSnapshot, "error", err)
		}
	})

	m.hub.Register(client)

	// Frames run in arrival order on one worker. The context ends with the
	// connection so store and moderation calls of a gone client are cut short.
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan queuedFrame, frameQueueSize)
	worked := make(chan struct{})
	go func() {
		defer close(worked)
		for f := range frames {
			if ctx.Err() == nil {
				m.dispatch(ctx, client, f.msg)
			}
			client.finish(f.seq)
		}
	}()

	defer func() {
		cancel()
		close(frames)
		<-worked
		client.Session.Close()
		m.hub.Unregister(client)
		m.logger.Info("WebSocket client disconnected", "client", client.ID)
	}()

	m.logger.Info("WebSocket client connected", "client", client.ID)

	if err := client.Send(ServerMessage{Type: WSTypeConnected, SessionID: client.Session.ID()}); err != nil {
		m.logger.Warn("Failed to send welcome", "client", client.ID, "error", err)
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("Client closed connection", "client", client.ID)
			} else {
				m.logger.Debug("WebSocket read error", "client", client.ID, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.toast(client, ToastError, MsgInvalidMessage)
			continue
		}

		seq, ok := client.accept(msg)
		if !ok {
			m.logger.Debug("Dropped repeated frame", "client", client.ID, "type", msg.Type)
			continue
		}
		frames <- queuedFrame{seq: seq, msg: msg}
	}
}

func (m *APIModule) dispatch(ctx context.Context, client *Client, msg ClientMessage) {
	sess := client.Session

	switch msg.Type {
	case WSTypeCreate:
		code, err := sess.Create(ctx, msg.Username)
		if err != nil {
			m.toast(client, ToastError, session.UserMessage(err))
			return
		}
		m.send(client, ServerMessage{Type: WSTypeRoom, RoomCode: code, Username: sess.Username()})

	case WSTypeJoin:
		if err := sess.Join(ctx, msg.Username, msg.RoomCode); err != nil {
			m.toast(client, ToastError, session.UserMessage(err))
			return
		}
		m.send(client, ServerMessage{Type: WSTypeRoom, RoomCode: sess.RoomCode(), Username: sess.Username()})

	case WSTypeSend:
		sent, err := sess.Send(ctx, msg.Text)
		if err != nil {
			m.toast(client, ToastError, session.UserMessage(err))
			return
		}
		m.send(client, ServerMessage{Type: WSTypeSent, RoomCode: sent.RoomCode, Message: sent})

	case WSTypeLeave:
		if err := sess.Leave(); err != nil {
			m.toast(client, ToastError, session.UserMessage(err))
			return
		}
		m.send(client, ServerMessage{Type: WSTypeLeft})

	case WSTypeCopy:
		code := sess.RoomCode()
		if !room.IsValidCode(code) {
			m.toast(client, ToastError, MsgCopyFailed)
			return
		}
		m.send(client, ServerMessage{Type: WSTypeCopied, RoomCode: code})
		m.toast(client, ToastSuccess, MsgCodeCopied)

	default:
		m.toast(client, ToastError, "Unknown message type: "+msg.Type)
	}
}

func (m *APIModule) send(client *Client, msg ServerMessage) {
	if err := client.Send(msg); err != nil {
		m.logger.Debug("Failed to write frame", "client", client.ID, "type", msg.Type, "error", err)
	}
}

func (m *APIModule) toast(client *Client, level, message string) {
	m.send(client, ServerMessage{
		Type: WSTypeToast,
		Toast: &Toast{
			Level:   level,
			Message: message,
			TTLMs:   m.cfg.ToastTTL.Milliseconds(),
		},
	})
}
