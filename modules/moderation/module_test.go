package moderation

import (
	"context"
	"testing"

	"github.com/example/roomchat/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_StartWithoutKey(t *testing.T) {
	m := NewModule(config.DefaultConfig(), &mockLogger{})
	ctx := context.Background()

	assert.Equal(t, "moderation", m.Name())
	assert.False(t, m.Health(ctx).Healthy)

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	require.NotNil(t, m.Gate())
	assert.False(t, m.Gate().Enabled())

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, false, health.Details["enabled"])
}

func TestModule_HandleCheck(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{"TOXICITY": 0.95}}
	m := NewModuleWithScorer(config.DefaultConfig(), scorer, &mockLogger{})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	resp, err := m.handleCheck(ctx, CheckRequest{Text: "bad words"}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Verdict.Blocked)
	assert.InDelta(t, 0.95, resp.Verdict.Scores["TOXICITY"], 1e-9)
}

func TestModule_UnreachableRedisIsIgnored(t *testing.T) {
	cfg := config.New(config.WithRedis("127.0.0.1:1", "", 0))
	m := NewModuleWithScorer(cfg, &fakeScorer{scores: map[string]float64{"TOXICITY": 0.1}}, &mockLogger{})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	assert.Nil(t, m.cache)
	assert.False(t, m.Gate().IsBlocked(ctx, "hello"))
}
