package channel

import (
	"sync"

	domain "github.com/example/roomchat/domain/chat"
)

// Subscription receives snapshots of one room.
//
// Only the latest undelivered snapshot is kept: a slow reader skips
// intermediate states but always ends up with the newest log.
type Subscription struct {
	room    string
	ch      chan domain.Snapshot
	done    chan struct{}
	channel *Channel
	feed    *feed

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// C returns the snapshot stream. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan domain.Snapshot {
	return s.ch
}

// Room returns the subscribed room code.
func (s *Subscription) Room() string {
	return s.room
}

// Unsubscribe stops deliveries. A snapshot queued but not yet received is
// discarded. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if f := s.feed; f != nil {
			f.mu.Lock()
			delete(f.subs, s)
			f.mu.Unlock()
			s.channel.releaseFeed(s.room, f)
		}

		s.mu.Lock()
		s.closed = true
		select {
		case <-s.ch:
		default:
		}
		close(s.ch)
		s.mu.Unlock()
		close(s.done)
	})
}

// Active reports whether the subscription has not been unsubscribed.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Subscription) deliver(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
