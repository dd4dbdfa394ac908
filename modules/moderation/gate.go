package moderation

import (
	"context"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// DefaultThreshold is the inclusive score at which text is blocked.
const DefaultThreshold = 0.3

// DefaultTimeout bounds a single moderation call.
const DefaultTimeout = 5 * time.Second

// Verdict is the outcome of a moderation check.
type Verdict struct {
	Blocked    bool               `json:"blocked"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	FailedOpen bool               `json:"failed_open,omitempty"`
	Cached     bool               `json:"cached,omitempty"`
	Disabled   bool               `json:"disabled,omitempty"`
}

// Gate decides whether text may be published.
//
// A Gate fails open: any service error, timeout or malformed response
// allows the text. One request is made per check, with no retries.
type Gate struct {
	scorer     Scorer
	cache      VerdictCache
	attributes []string
	threshold  float64
	timeout    time.Duration
	logger     types.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithThreshold sets the inclusive blocking threshold.
func WithThreshold(threshold float64) GateOption {
	return func(g *Gate) {
		g.threshold = threshold
	}
}

// WithTimeout sets the per-check timeout.
func WithTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithCache sets the verdict cache.
func WithCache(cache VerdictCache) GateOption {
	return func(g *Gate) {
		g.cache = cache
	}
}

// WithAttributes restricts which scored attributes count toward a block.
func WithAttributes(attributes ...string) GateOption {
	return func(g *Gate) {
		g.attributes = attributes
	}
}

// NewGate creates a gate over scorer. A nil scorer disables moderation.
func NewGate(scorer Scorer, logger types.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		scorer:     scorer,
		attributes: DefaultAttributes,
		threshold:  DefaultThreshold,
		timeout:    DefaultTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a scorer is configured.
func (g *Gate) Enabled() bool {
	return g.scorer != nil
}

// IsBlocked reports whether text must be rejected.
func (g *Gate) IsBlocked(ctx context.Context, text string) bool {
	return g.Check(ctx, text).Blocked
}

// Check scores text and returns the full verdict.
func (g *Gate) Check(ctx context.Context, text string) Verdict {
	if g.scorer == nil {
		return Verdict{Disabled: true}
	}

	if g.cache != nil {
		v, ok, err := g.cache.Get(ctx, text)
		if err != nil {
			g.logger.Warn("Verdict cache lookup failed", "error", err)
		} else if ok {
			v.Cached = true
			return v
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	scores, err := g.scorer.Score(callCtx, text)
	if err != nil {
		g.logger.Warn("Moderation service error, allowing text", "error", err)
		return Verdict{FailedOpen: true}
	}

	v, ok := g.evaluate(scores)
	if !ok {
		g.logger.Warn("Moderation service error, allowing text", "error", ErrMalformedResponse)
		return Verdict{FailedOpen: true}
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, text, v); err != nil {
			g.logger.Warn("Verdict cache store failed", "error", err)
		}
	}
	return v
}

// evaluate applies the threshold to the requested attributes. It returns
// false when none of them were scored.
func (g *Gate) evaluate(scores map[string]float64) (Verdict, bool) {
	v := Verdict{Scores: make(map[string]float64, len(g.attributes))}
	for _, attr := range g.attributes {
		score, ok := scores[attr]
		if !ok {
			continue
		}
		v.Scores[attr] = score
		if score >= g.threshold {
			v.Blocked = true
		}
	}
	return v, len(v.Scores) > 0
}
