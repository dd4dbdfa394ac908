package moderation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }

func (m *mockLogger) Warn(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

// fakeScorer returns canned scores and counts calls.
type fakeScorer struct {
	scores map[string]float64
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeScorer) Score(ctx context.Context, _ string) (map[string]float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.scores, f.err
}

// memoryCache is an in-process VerdictCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]Verdict
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]Verdict)}
}

func (c *memoryCache) Get(_ context.Context, text string) (Verdict, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Verdict{}, false, c.getErr
	}
	v, ok := c.entries[text]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, text string, v Verdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[text] = v
	return nil
}

func TestGate_IsBlocked(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   bool
	}{
		{"all low", map[string]float64{"TOXICITY": 0.01, "INSULT": 0.02}, false},
		{"just below threshold", map[string]float64{"TOXICITY": 0.2999}, false},
		{"exactly threshold", map[string]float64{"PROFANITY": 0.3}, true},
		{"one attribute high", map[string]float64{"TOXICITY": 0.05, "INSULT": 0.91}, true},
		{"threat high", map[string]float64{"THREAT": 0.5}, true},
		{"unrequested attribute ignored", map[string]float64{"TOXICITY": 0.1, "FLIRTATION": 0.99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(&fakeScorer{scores: tt.scores}, &mockLogger{})
			assert.Equal(t, tt.want, gate.IsBlocked(context.Background(), "some text"))
		})
	}
}

func TestGate_FailsOpen(t *testing.T) {
	tests := []struct {
		name   string
		scorer *fakeScorer
	}{
		{"service error", &fakeScorer{err: ErrUnexpectedStatus}},
		{"network error", &fakeScorer{err: errors.New("connection refused")}},
		{"no scores", &fakeScorer{scores: map[string]float64{}}},
		{"only unrequested scores", &fakeScorer{scores: map[string]float64{"SPAM": 0.9}}},
		{"timeout", &fakeScorer{scores: map[string]float64{"TOXICITY": 0.99}, delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			gate := NewGate(tt.scorer, logger, WithTimeout(50*time.Millisecond))

			start := time.Now()
			v := gate.Check(context.Background(), "hello there")

			assert.False(t, v.Blocked)
			assert.True(t, v.FailedOpen)
			assert.Less(t, time.Since(start), 500*time.Millisecond)
			assert.Equal(t, 1, logger.warnCount(), "service errors must be logged")
			assert.EqualValues(t, 1, tt.scorer.calls.Load(), "no retries")
		})
	}
}

func TestGate_CustomThreshold(t *testing.T) {
	gate := NewGate(&fakeScorer{scores: map[string]float64{"TOXICITY": 0.4}}, &mockLogger{}, WithThreshold(0.5))
	assert.False(t, gate.IsBlocked(context.Background(), "text"))
}

func TestGate_CustomAttributes(t *testing.T) {
	gate := NewGate(
		&fakeScorer{scores: map[string]float64{"TOXICITY": 0.9, "SPAM": 0.1}},
		&mockLogger{},
		WithAttributes("SPAM"),
	)
	v := gate.Check(context.Background(), "text")
	assert.False(t, v.Blocked)
	assert.Equal(t, map[string]float64{"SPAM": 0.1}, v.Scores)
}

func TestGate_Disabled(t *testing.T) {
	gate := NewGate(nil, &mockLogger{})

	v := gate.Check(context.Background(), "anything goes")
	assert.False(t, gate.Enabled())
	assert.False(t, v.Blocked)
	assert.True(t, v.Disabled)
}

func TestGate_CachesVerdicts(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{"INSULT": 0.8}}
	cache := newMemoryCache()
	gate := NewGate(scorer, &mockLogger{}, WithCache(cache))
	ctx := context.Background()

	first := gate.Check(ctx, "you fool")
	second := gate.Check(ctx, "you fool")

	assert.True(t, first.Blocked)
	assert.False(t, first.Cached)
	assert.True(t, second.Blocked)
	assert.True(t, second.Cached)
	assert.EqualValues(t, 1, scorer.calls.Load())
}

func TestGate_DoesNotCacheFailOpen(t *testing.T) {
	scorer := &fakeScorer{err: ErrRequestFailed}
	cache := newMemoryCache()
	gate := NewGate(scorer, &mockLogger{}, WithCache(cache))
	ctx := context.Background()

	gate.Check(ctx, "hello")
	gate.Check(ctx, "hello")

	assert.EqualValues(t, 2, scorer.calls.Load())
	assert.Empty(t, cache.entries)
}

func TestGate_CacheErrorFallsThrough(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{"TOXICITY": 0.1}}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	logger := &mockLogger{}
	gate := NewGate(scorer, logger, WithCache(cache))

	v := gate.Check(context.Background(), "hello")

	require.False(t, v.Blocked)
	assert.False(t, v.FailedOpen)
	assert.EqualValues(t, 1, scorer.calls.Load())
	assert.Equal(t, 1, logger.warnCount())
}
