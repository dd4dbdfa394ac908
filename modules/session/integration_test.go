package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/channel"
	"github.com/example/roomchat/modules/moderation"
	"github.com/example/roomchat/modules/room"
	"github.com/example/roomchat/modules/session"
	"github.com/example/roomchat/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (l nopLogger) Debug(_ string, _ ...any)         {}
func (l nopLogger) Info(_ string, _ ...any)          {}
func (l nopLogger) Warn(_ string, _ ...any)          {}
func (l nopLogger) Error(_ string, _ ...any)         {}
func (l nopLogger) With(_ ...any) types.Logger       { return l }
func (l nopLogger) WithError(_ error) types.Logger   { return l }
func (l nopLogger) WithModule(_ string) types.Logger { return l }

// The channel and the gate plug straight into the controller.
var (
	_ session.MessageChannel = (*channel.Channel)(nil)
	_ session.Moderator      = (*moderation.Gate)(nil)
)

type storeProvider struct {
	s store.Store
}

func (p storeProvider) Store() store.Store { return p.s }

// localRooms exposes a room.Manager through the controller's RoomManager.
type localRooms struct {
	*room.Manager
}

func (l localRooms) CreateRoom(ctx context.Context, code, _ string) (*domain.Room, error) {
	return l.Manager.CreateRoom(ctx, code)
}

// perspectiveStub scores "toxic" texts at 0.35 and everything else at 0.01.
func perspectiveStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Comment struct {
				Text string `json:"text"`
			} `json:"comment"`
		}
		if err := decodeJSON(r, &body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		score := "0.01"
		if body.Comment.Text == "you are toxic" {
			score = "0.35"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"attributeScores":{"TOXICITY":{"summaryScore":{"value":` + score + `}}}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

type stack struct {
	ctrl    *session.Controller
	manager *room.Manager
	channel *channel.Channel
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	s, err := store.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	provider := storeProvider{s: s}
	manager, err := room.NewManager(provider, room.DefaultCodeLength)
	require.NoError(t, err)

	ch := channel.New(provider, nopLogger{})
	t.Cleanup(ch.Close)

	server := perspectiveStub(t)
	gate := moderation.NewGate(moderation.NewPerspectiveClient(server.URL, "test"), nopLogger{})

	return &stack{
		ctrl:    session.NewController(gate, localRooms{manager}, ch, nopLogger{}),
		manager: manager,
		channel: ch,
	}
}

type latest struct {
	mu   sync.Mutex
	snap *domain.Snapshot
}

func (l *latest) set(s domain.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = &s
}

func (l *latest) get() *domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

func TestScenario_CreateSendLeaveRejoin(t *testing.T) {
	st := setupStack(t)
	ctx := context.Background()

	var view latest
	alice := st.ctrl.NewSession(view.set)

	code, err := alice.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	exists, err := st.manager.RoomExists(ctx, code)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = alice.Send(ctx, "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := view.get()
		return snap != nil && len(snap.Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)
	msg := view.get().Messages[0]
	assert.Equal(t, "alice", msg.Author)
	assert.Equal(t, "hi", msg.Body)

	_, err = alice.Send(ctx, "you are toxic")
	assert.Equal(t, session.KindModerationBlocked, session.KindOf(err))
	assert.Equal(t, session.StateInRoom, alice.State())

	messages, err := st.channel.Messages(ctx, code)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "blocked text must not be written")

	require.NoError(t, alice.Leave())
	assert.Equal(t, session.StateUnauthenticated, alice.State())
	rooms, subscribers := st.channel.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, subscribers)

	require.NoError(t, alice.Join(ctx, "alice-again", code))
	_, err = alice.Send(ctx, "back")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := view.get()
		return snap != nil && len(snap.Messages) == 2 && snap.Messages[1].Author == "alice-again"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScenario_JoinUnknownRoom(t *testing.T) {
	st := setupStack(t)

	bob := st.ctrl.NewSession(nil)
	err := bob.Join(context.Background(), "bob", "zzzzzz")

	assert.Equal(t, session.KindNotFound, session.KindOf(err))
	assert.Equal(t, "Room not found", session.UserMessage(err))
	assert.Equal(t, session.StateUnauthenticated, bob.State())
}

func TestScenario_TwoSessionsSeeSameOrderedLog(t *testing.T) {
	st := setupStack(t)
	ctx := context.Background()

	var aliceView, bobView latest
	alice := st.ctrl.NewSession(aliceView.set)
	bob := st.ctrl.NewSession(bobView.set)

	code, err := alice.Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, bob.Join(ctx, "bob", code))

	for _, text := range []string{"one", "two", "three"} {
		_, err := alice.Send(ctx, text)
		require.NoError(t, err)
		_, err = bob.Send(ctx, text+"!")
		require.NoError(t, err)
	}

	for _, view := range []*latest{&aliceView, &bobView} {
		require.Eventually(t, func() bool {
			snap := view.get()
			return snap != nil && len(snap.Messages) == 6
		}, 2*time.Second, 10*time.Millisecond)

		snap := view.get()
		for i := 1; i < len(snap.Messages); i++ {
			assert.False(t, snap.Messages[i].Timestamp.Before(snap.Messages[i-1].Timestamp))
		}
		assert.Equal(t, "one", snap.Messages[0].Body)
		assert.Equal(t, "three!", snap.Messages[5].Body)
	}
}

func TestScenario_ModerationOutageFailsOpen(t *testing.T) {
	s, err := store.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	provider := storeProvider{s: s}
	manager, err := room.NewManager(provider, room.DefaultCodeLength)
	require.NoError(t, err)
	ch := channel.New(provider, nopLogger{})
	defer ch.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	gate := moderation.NewGate(moderation.NewPerspectiveClient(down.URL, "k"), nopLogger{})
	ctrl := session.NewController(gate, localRooms{manager}, ch, nopLogger{})

	sess := ctrl.NewSession(nil)
	_, err = sess.Create(context.Background(), "carol")
	require.NoError(t, err)
	_, err = sess.Send(context.Background(), "anything at all")
	require.NoError(t, err)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
