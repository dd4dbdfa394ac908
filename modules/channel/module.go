package channel

import (
	"context"
	"fmt"

	"github.com/example/roomchat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the message channel and relays MessageSent events to
// local subscribers.
type Module struct {
	channel *Channel
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new channel module.
func NewModule(stores StoreProvider, logger types.Logger) *Module {
	return &Module{
		channel: New(stores, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "channel"
}

// Channel returns the message channel.
func (m *Module) Channel() *Channel {
	return m.channel
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.channel.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
	}
}

// RegisterEventConsumers subscribes to MessageSent so messages sent through
// other instances reach this instance's subscribers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	m.logger.Info("Registered channel event consumers")
	return nil
}

func (m *Module) handleMessageSent(ctx context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	if event.Origin == m.channel.Origin() {
		return nil
	}
	m.logger.Debug("Refreshing room after remote message", "room", event.RoomCode, "messageID", event.MessageID)
	m.channel.Refresh(ctx, event.RoomCode)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Channel module started")
	return nil
}

// Stop closes every open subscription.
func (m *Module) Stop(_ context.Context) error {
	m.channel.Close()
	m.logger.Info("Channel module stopped")
	return nil
}

// Health reports subscription counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	rooms, subscribers := m.channel.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       rooms,
			"subscribers": subscribers,
		},
	}
}
