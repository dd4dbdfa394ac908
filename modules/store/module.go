package store

import (
	"context"
	"fmt"

	"github.com/example/roomchat/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the document store connection.
type Module struct {
	cfg    config.Config
	store  Store
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module for the configured driver.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// NewModuleWithStore creates a store module around an already open store.
func NewModuleWithStore(s Store, logger types.Logger) *Module {
	return &Module{
		store:  s,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Store returns the opened store, or nil before Start.
func (m *Module) Store() Store {
	return m.store
}

// Start opens the configured backend.
func (m *Module) Start(ctx context.Context) error {
	if m.store != nil {
		return nil
	}

	switch m.cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, m.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		m.store = s
	case config.DriverSQLite, "":
		s, err := OpenSQLite(m.cfg.DBPath, m.cfg.DBDebug)
		if err != nil {
			return err
		}
		m.store = s
	default:
		return fmt.Errorf("unknown store driver %q", m.cfg.StoreDriver)
	}

	m.logger.Info("Store opened", "driver", m.driver())
	return nil
}

// Stop closes the store.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	m.logger.Info("Store closed")
	return nil
}

// Health pings the store.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.driver(),
		},
	}
}

func (m *Module) driver() string {
	switch m.store.(type) {
	case *PostgresStore:
		return config.DriverPostgres
	case *GormStore:
		return config.DriverSQLite
	default:
		return "custom"
	}
}
