package moderation

import (
	"context"
	"encoding/json"

	"github.com/example/roomchat/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module exposes the moderation gate as a request-reply service.
type Module struct {
	cfg    config.Config
	gate   *Gate
	cache  *RedisVerdictCache
	scorer Scorer
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a moderation module from config.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	m := &Module{
		cfg:    cfg,
		logger: logger,
	}
	if cfg.ModerationEnabled() {
		m.scorer = NewPerspectiveClient(cfg.PerspectiveURL, cfg.PerspectiveAPIKey)
	}
	return m
}

// NewModuleWithScorer creates a moderation module around a custom scorer.
func NewModuleWithScorer(cfg config.Config, scorer Scorer, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		scorer: scorer,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "moderation"
}

// Gate returns the moderation gate, or nil before Start.
func (m *Module) Gate() *Gate {
	return m.gate
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	return helper.RegisterTypedRequestReplyService(
		container, ServiceCheck, json.Unmarshal, json.Marshal, m.handleCheck,
	)
}

func (m *Module) handleCheck(ctx context.Context, req CheckRequest, _ *mono.Msg) (CheckResponse, error) {
	return CheckResponse{Verdict: m.gate.Check(ctx, req.Text)}, nil
}

// Start builds the gate and connects the optional verdict cache.
func (m *Module) Start(ctx context.Context) error {
	opts := []GateOption{
		WithThreshold(m.cfg.ModerationThreshold),
		WithTimeout(m.cfg.ModerationTimeout),
	}

	if m.cfg.RedisAddr != "" && m.scorer != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     m.cfg.RedisAddr,
			Password: m.cfg.RedisPassword,
			DB:       m.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			m.logger.Warn("Verdict cache unavailable, continuing without it",
				"addr", m.cfg.RedisAddr, "error", err)
			client.Close()
		} else {
			m.cache = NewRedisVerdictCache(client, "moderation:verdict:", m.cfg.VerdictTTL)
			opts = append(opts, WithCache(m.cache))
		}
	}

	m.gate = NewGate(m.scorer, m.logger, opts...)
	if !m.gate.Enabled() {
		m.logger.Warn("Moderation disabled: no API key configured, all text is allowed")
	}
	m.logger.Info("Moderation module started",
		"enabled", m.gate.Enabled(),
		"threshold", m.cfg.ModerationThreshold,
		"cache", m.cache != nil)
	return nil
}

// Stop closes the verdict cache connection.
func (m *Module) Stop(_ context.Context) error {
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			m.logger.Warn("Failed to close verdict cache", "error", err)
		}
	}
	m.logger.Info("Moderation module stopped")
	return nil
}

// Health reports gate and cache status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.gate == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "gate not initialized",
		}
	}

	details := map[string]any{
		"enabled":   m.gate.Enabled(),
		"threshold": m.gate.threshold,
		"timeout":   m.gate.timeout.String(),
	}
	if m.cache != nil {
		details["cache"] = m.cache.Stats()
		if err := m.cache.Ping(ctx); err != nil {
			details["cache_error"] = err.Error()
		}
	}

	// moderation fails open, so a broken cache never makes the module unhealthy
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
