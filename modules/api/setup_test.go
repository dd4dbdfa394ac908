package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/roomchat/config"
	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/channel"
	"github.com/example/roomchat/modules/moderation"
	"github.com/example/roomchat/modules/room"
	"github.com/example/roomchat/modules/session"
	"github.com/example/roomchat/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type storeProvider struct {
	s store.Store
}

func (p storeProvider) Store() store.Store { return p.s }

// localRooms serves room.RoomPort from an in-process manager.
type localRooms struct {
	*room.Manager
}

func (l localRooms) CreateRoom(ctx context.Context, code, _ string) (*domain.Room, error) {
	return l.Manager.CreateRoom(ctx, code)
}

// fakeModeration blocks the texts in blocked; err makes Check fail. With
// hang set, IsBlocked waits for its context to end and counts it.
type fakeModeration struct {
	mu      sync.Mutex
	blocked map[string]bool
	err     error
	checks  int

	hang      atomic.Bool
	cancelled atomic.Int32
}

func (f *fakeModeration) Check(_ context.Context, text string) (moderation.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.err != nil {
		return moderation.Verdict{}, f.err
	}
	return moderation.Verdict{Blocked: f.blocked[text]}, nil
}

func (f *fakeModeration) IsBlocked(ctx context.Context, text string) bool {
	if f.hang.Load() {
		<-ctx.Done()
		f.cancelled.Add(1)
		return false
	}
	v, err := f.Check(ctx, text)
	return err == nil && v.Blocked
}

// brokenRooms fails every store call.
type brokenRooms struct{}

func (brokenRooms) GenerateCode() string { return "abc123" }

func (brokenRooms) CreateRoom(context.Context, string, string) (*domain.Room, error) {
	return nil, errors.New("store offline")
}

func (brokenRooms) RoomExists(context.Context, string) (bool, error) {
	return false, errors.New("store offline")
}

type testEnv struct {
	module     *APIModule
	app        *fiber.App
	manager    *room.Manager
	channel    *channel.Channel
	moderation *fakeModeration
}

func setupTestModule(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	provider := storeProvider{s: s}
	manager, err := room.NewManager(provider, room.DefaultCodeLength)
	require.NoError(t, err)

	ch := channel.New(provider, &mockLogger{})
	t.Cleanup(ch.Close)

	mod := &fakeModeration{blocked: map[string]bool{
		"badname":       true,
		"you are toxic": true,
	}}

	m := NewModule(config.New(config.WithPort("0")), &mockLogger{})
	m.rooms = localRooms{manager}
	m.moderation = mod
	m.SetChannel(ch)
	m.controller = session.NewController(m.moderation, m.rooms, m.channel, m.logger)
	m.app = m.newApp()

	return &testEnv{
		module:     m,
		app:        m.app,
		manager:    manager,
		channel:    ch,
		moderation: mod,
	}
}

func (e *testEnv) seedRoom(t *testing.T, code string, messages ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.manager.CreateRoom(ctx, code)
	require.NoError(t, err)
	for _, body := range messages {
		_, err := e.channel.SendMessage(ctx, code, "seed", body)
		require.NoError(t, err)
	}
}

const frameTimeout = 2 * time.Second
