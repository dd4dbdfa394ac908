package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	domain "github.com/example/roomchat/domain/chat"
	"golang.org/x/sync/singleflight"
)

// State is a session's position in its lifecycle.
type State int

// Session states.
const (
	StateUnauthenticated State = iota
	StateInRoom
)

func (s State) String() string {
	if s == StateInRoom {
		return "in_room"
	}
	return "unauthenticated"
}

// Session is one user's view of the chat: who they are and which room
// they are in. Every action either completes fully or leaves the session
// as it was.
//
// Identical actions submitted while one is in flight share its result,
// so a double click sends once. Different actions run one at a time.
type Session struct {
	id       string
	ctrl     *Controller
	onUpdate func(domain.Snapshot)

	flight   singleflight.Group
	actionMu sync.Mutex

	mu          sync.RWMutex
	state       State
	username    string
	roomCode    string
	unsubscribe func()
	generation  uint64
	live        bool
	pending     atomic.Pointer[domain.Snapshot]
	closed      bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Username returns the current username, empty when unauthenticated.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// RoomCode returns the current room code, empty when unauthenticated.
func (s *Session) RoomCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomCode
}

// Create creates a room with a fresh code and enters it.
func (s *Session) Create(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)

	v, err := s.do("create\x00"+username, func() (any, error) {
		if err := s.requireState(StateUnauthenticated); err != nil {
			return "", err
		}
		if username == "" {
			return "", newError(KindValidation, MsgUsernameRequired, nil)
		}
		if s.ctrl.moderator.IsBlocked(ctx, username) {
			return "", newError(KindModerationBlocked, MsgInvalidUsername, nil)
		}

		// Subscribe before writing so a failed subscription leaves no room behind.
		code := s.ctrl.rooms.GenerateCode()
		gen, unsubscribe, err := s.subscribe(ctx, code)
		if err != nil {
			s.ctrl.logger.Warn("Failed to subscribe to new room", "session", s.id, "code", code, "error", err)
			return "", newError(KindStore, MsgCreateFailed, err)
		}
		if _, err := s.ctrl.rooms.CreateRoom(ctx, code, username); err != nil {
			s.abandon(gen, unsubscribe)
			s.ctrl.logger.Warn("Failed to create room", "session", s.id, "code", code, "error", err)
			return "", newError(KindStore, MsgCreateFailed, err)
		}
		s.commit(gen, username, code, unsubscribe)

		s.ctrl.logger.Info("Room created", "session", s.id, "code", code, "username", username)
		return code, nil
	})
	code, _ := v.(string)
	return code, err
}

// Join enters an existing room.
func (s *Session) Join(ctx context.Context, username, code string) error {
	username = strings.TrimSpace(username)
	code = strings.TrimSpace(code)

	_, err := s.do("join\x00"+username+"\x00"+code, func() (any, error) {
		if err := s.requireState(StateUnauthenticated); err != nil {
			return nil, err
		}
		if username == "" || code == "" {
			return nil, newError(KindValidation, MsgUsernameAndCodeRequired, nil)
		}
		if s.ctrl.moderator.IsBlocked(ctx, username) {
			return nil, newError(KindModerationBlocked, MsgInvalidUsername, nil)
		}

		exists, err := s.ctrl.rooms.RoomExists(ctx, code)
		if err != nil {
			s.ctrl.logger.Warn("Failed to check room", "session", s.id, "code", code, "error", err)
			return nil, newError(KindStore, MsgJoinFailed, err)
		}
		if !exists {
			return nil, newError(KindNotFound, MsgRoomNotFound, nil)
		}
		gen, unsubscribe, err := s.subscribe(ctx, code)
		if err != nil {
			s.ctrl.logger.Warn("Failed to subscribe to room", "session", s.id, "code", code, "error", err)
			return nil, newError(KindStore, MsgJoinFailed, err)
		}
		s.commit(gen, username, code, unsubscribe)

		s.ctrl.logger.Info("Room joined", "session", s.id, "code", code, "username", username)
		return nil, nil
	})
	return err
}

// Send posts a message to the current room.
func (s *Session) Send(ctx context.Context, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)

	v, err := s.do("send\x00"+text, func() (any, error) {
		if err := s.requireState(StateInRoom); err != nil {
			return nil, err
		}
		if text == "" {
			return nil, newError(KindValidation, MsgMessageRequired, nil)
		}
		if n := utf8.RuneCountInString(text); n < MinMessageLength || n > MaxMessageLength {
			return nil, newError(KindValidation, MsgMessageLength, nil)
		}
		if s.ctrl.moderator.IsBlocked(ctx, text) {
			return nil, newError(KindModerationBlocked, MsgMessageBlocked, nil)
		}

		username, code := s.Username(), s.RoomCode()
		msg, err := s.ctrl.channel.SendMessage(ctx, code, username, text)
		if err != nil {
			s.ctrl.logger.Warn("Failed to send message", "session", s.id, "code", code, "error", err)
			return nil, newError(KindStore, MsgSendFailed, err)
		}
		return msg, nil
	})
	msg, _ := v.(*domain.Message)
	return msg, err
}

// Leave unsubscribes from the room and resets the session.
func (s *Session) Leave() error {
	_, err := s.do("leave", func() (any, error) {
		if err := s.requireState(StateInRoom); err != nil {
			return nil, err
		}
		code := s.RoomCode()
		s.reset()
		s.ctrl.logger.Info("Room left", "session", s.id, "code", code)
		return nil, nil
	})
	return err
}

// Close tears the session down. Further actions fail.
func (s *Session) Close() {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.reset()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// do runs fn once per concurrent key and serializes different actions.
func (s *Session) do(key string, fn func() (any, error)) (any, error) {
	v, err, _ := s.flight.Do(key, func() (any, error) {
		s.actionMu.Lock()
		defer s.actionMu.Unlock()
		return fn()
	})
	return v, err
}

func (s *Session) requireState(want State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.closed:
		return newError(KindInvalidState, MsgSessionClosed, nil)
	case s.state == want:
		return nil
	case want == StateInRoom:
		return newError(KindInvalidState, MsgJoinFirst, nil)
	default:
		return newError(KindInvalidState, MsgLeaveFirst, nil)
	}
}

// subscribe opens a subscription under a fresh generation. Snapshots that
// arrive before commit are held back; nothing else changes.
func (s *Session) subscribe(ctx context.Context, code string) (uint64, func(), error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.live = false
	s.pending.Store(nil)
	s.mu.Unlock()

	unsubscribe, err := s.ctrl.channel.Watch(context.WithoutCancel(ctx), code, func(snap domain.Snapshot) {
		s.deliver(gen, snap)
	})
	if err != nil {
		return 0, nil, err
	}
	return gen, unsubscribe, nil
}

// commit switches to InRoom and forwards the snapshot held back since subscribe.
func (s *Session) commit(gen uint64, username, code string, unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateInRoom
	s.username = username
	s.roomCode = code
	s.unsubscribe = unsubscribe
	s.live = true

	if held := s.pending.Swap(nil); held != nil && s.generation == gen && s.onUpdate != nil {
		s.onUpdate(*held)
	}
}

// abandon drops a subscription that never reached commit.
func (s *Session) abandon(gen uint64, unsubscribe func()) {
	s.mu.Lock()
	if s.generation == gen {
		s.generation++
		s.pending.Store(nil)
	}
	s.mu.Unlock()
	unsubscribe()
}

// deliver forwards snapshots of the current subscription only. The read lock
// is held through onUpdate so reset waits for a delivery in progress.
func (s *Session) deliver(gen uint64, snap domain.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.generation != gen {
		return
	}
	if !s.live {
		s.pending.Store(&snap)
		return
	}
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}

func (s *Session) reset() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.state = StateUnauthenticated
	s.username = ""
	s.roomCode = ""
	s.unsubscribe = nil
	s.generation++
	s.live = false
	s.pending.Store(nil)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
