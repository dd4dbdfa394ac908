package moderation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ModerationPort defines the interface for moderation checks.
type ModerationPort interface {
	IsBlocked(ctx context.Context, text string) bool
	Check(ctx context.Context, text string) (Verdict, error)
}

// Adapter implements ModerationPort using the service container.
// A failed service call allows the text, like the gate itself.
type Adapter struct {
	container mono.ServiceContainer
	logger    types.Logger
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer, logger types.Logger) ModerationPort {
	if container == nil {
		panic("moderation: ServiceContainer is nil")
	}
	return &Adapter{container: container, logger: logger}
}

// Check calls the moderation check service.
func (a *Adapter) Check(ctx context.Context, text string) (Verdict, error) {
	req := CheckRequest{Text: text}
	var resp CheckResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCheck,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return Verdict{}, fmt.Errorf("failed to check text: %w", err)
	}
	return resp.Verdict, nil
}

// IsBlocked reports whether text must be rejected.
func (a *Adapter) IsBlocked(ctx context.Context, text string) bool {
	v, err := a.Check(ctx, text)
	if err != nil {
		a.logger.Warn("Moderation service error, allowing text", "error", err)
		return false
	}
	return v.Blocked
}
