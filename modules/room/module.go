package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/roomchat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module provides room identity services.
type Module struct {
	manager  *Manager
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new room module.
func NewModule(stores StoreProvider, codeLength int, logger types.Logger) (*Module, error) {
	manager, err := NewManager(stores, codeLength)
	if err != nil {
		return nil, err
	}
	return &Module{
		manager: manager,
		logger:  logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "room"
}

// Manager returns the room manager.
func (m *Module) Manager() *Manager {
	return m.manager
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
// The framework automatically prefixes service names with "services.room."
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomExists, json.Unmarshal, json.Marshal, m.handleRoomExists,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomExists, err)
	}

	m.logger.Info("Registered room services", "services", []string{ServiceCreateRoom, ServiceRoomExists})
	return nil
}

func (m *Module) handleCreateRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	code := req.Code
	if code == "" {
		code = m.manager.GenerateCode()
	}

	room, err := m.manager.CreateRoom(ctx, code)
	if err != nil {
		return CreateRoomResponse{}, err
	}
	m.logger.Info("Room created", "code", room.Code, "createdBy", req.CreatedBy)

	if m.eventBus != nil {
		event := events.RoomCreatedEvent{
			RoomCode:  room.Code,
			CreatedBy: req.CreatedBy,
			Timestamp: time.Now(),
		}
		if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish RoomCreated event", "code", room.Code, "error", err)
		}
	}

	return CreateRoomResponse{Room: room}, nil
}

func (m *Module) handleRoomExists(ctx context.Context, req RoomExistsRequest, _ *mono.Msg) (RoomExistsResponse, error) {
	exists, err := m.manager.RoomExists(ctx, req.Code)
	if err != nil {
		return RoomExistsResponse{}, err
	}
	return RoomExistsResponse{Exists: exists}, nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Room module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Room module stopped")
	return nil
}

// Health reports whether the backing store is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	s := m.manager.stores.Store()
	if s == nil {
		return mono.HealthStatus{Healthy: false, Message: "store not available"}
	}
	if err := s.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("store ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}
