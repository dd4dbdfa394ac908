package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/events"
	"github.com/example/roomchat/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// ErrStoreUnavailable is returned when the store has not been opened yet.
var ErrStoreUnavailable = errors.New("store not available")

// ErrClosed is returned after the channel has been closed.
var ErrClosed = errors.New("channel closed")

// StoreProvider hands out the opened store.
type StoreProvider interface {
	Store() store.Store
}

// Channel appends messages to rooms and pushes full snapshots of a room's
// message log to its subscribers whenever the log changes.
type Channel struct {
	stores   StoreProvider
	origin   string
	logger   types.Logger
	eventBus mono.EventBus

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

// feed holds the subscribers of one room. Refreshes of a feed are
// serialized, so every subscriber sees snapshots in log order.
type feed struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	removed atomic.Bool
}

// New creates a channel over the given store provider.
func New(stores StoreProvider, logger types.Logger) *Channel {
	return &Channel{
		stores: stores,
		origin: uuid.New().String(),
		logger: logger,
		feeds:  make(map[string]*feed),
	}
}

// SetEventBus enables cross-instance notification through MessageSent events.
func (c *Channel) SetEventBus(bus mono.EventBus) {
	c.eventBus = bus
}

// Origin identifies this channel instance in published events.
func (c *Channel) Origin() string {
	return c.origin
}

func (c *Channel) store() (store.Store, error) {
	s := c.stores.Store()
	if s == nil {
		return nil, ErrStoreUnavailable
	}
	return s, nil
}

// SendMessage stores a message and notifies the room's subscribers.
// The store assigns the timestamp.
func (c *Channel) SendMessage(ctx context.Context, code, author, body string) (*domain.Message, error) {
	s, err := c.store()
	if err != nil {
		return nil, err
	}
	msg, err := s.AppendMessage(ctx, code, author, body)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	c.Refresh(context.WithoutCancel(ctx), code)

	if c.eventBus != nil {
		event := events.MessageSentEvent{
			MessageID: msg.ID,
			RoomCode:  msg.RoomCode,
			Author:    msg.Author,
			Origin:    c.origin,
			Timestamp: msg.Timestamp,
		}
		if err := events.MessageSentV1.Publish(c.eventBus, event, nil); err != nil {
			c.logger.Warn("Failed to publish MessageSent event", "room", code, "error", err)
		}
	}
	return msg, nil
}

// Messages returns the room's current ordered message log.
func (c *Channel) Messages(ctx context.Context, code string) ([]domain.Message, error) {
	s, err := c.store()
	if err != nil {
		return nil, err
	}
	return s.ListMessages(ctx, code)
}

// Subscribe registers for snapshots of the room's message log. The first
// snapshot is already queued on the subscription when Subscribe returns.
// Cancelling ctx unsubscribes.
func (c *Channel) Subscribe(ctx context.Context, code string) (*Subscription, error) {
	s, err := c.store()
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		room:    code,
		ch:      make(chan domain.Snapshot, 1),
		done:    make(chan struct{}),
		channel: c,
	}

	for {
		f, err := c.acquireFeed(code)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		if f.removed.Load() {
			f.mu.Unlock()
			continue
		}
		messages, err := s.ListMessages(ctx, code)
		if err != nil {
			f.mu.Unlock()
			c.releaseFeed(code, f)
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
		f.subs[sub] = struct{}{}
		sub.feed = f
		sub.deliver(newSnapshot(code, messages))
		f.mu.Unlock()
		break
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// SubscribeFunc subscribes and calls onUpdate with every snapshot on a
// dedicated goroutine until the subscription ends. Snapshots still queued
// when Unsubscribe runs are dropped; a call already running may finish.
func (c *Channel) SubscribeFunc(ctx context.Context, code string, onUpdate func(domain.Snapshot)) (*Subscription, error) {
	sub, err := c.Subscribe(ctx, code)
	if err != nil {
		return nil, err
	}
	go func() {
		for snap := range sub.C() {
			if !sub.Active() {
				return
			}
			onUpdate(snap)
		}
	}()
	return sub, nil
}

// Watch is SubscribeFunc returning only the unsubscribe handle.
func (c *Channel) Watch(ctx context.Context, code string, onUpdate func(domain.Snapshot)) (func(), error) {
	sub, err := c.SubscribeFunc(ctx, code, onUpdate)
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Refresh reloads the room's log and pushes it to every subscriber.
func (c *Channel) Refresh(ctx context.Context, code string) {
	c.mu.Lock()
	f := c.feeds[code]
	c.mu.Unlock()
	if f == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed.Load() || len(f.subs) == 0 {
		return
	}

	s, err := c.store()
	if err != nil {
		c.logger.Warn("Skipping refresh", "room", code, "error", err)
		return
	}
	messages, err := s.ListMessages(ctx, code)
	if err != nil {
		c.logger.Warn("Failed to refresh room", "room", code, "error", err)
		return
	}

	snap := newSnapshot(code, messages)
	for sub := range f.subs {
		sub.deliver(snap)
	}
}

// Stats returns the number of watched rooms and open subscriptions.
func (c *Channel) Stats() (rooms, subscribers int) {
	c.mu.Lock()
	feeds := make([]*feed, 0, len(c.feeds))
	for _, f := range c.feeds {
		feeds = append(feeds, f)
	}
	c.mu.Unlock()

	for _, f := range feeds {
		f.mu.Lock()
		subscribers += len(f.subs)
		f.mu.Unlock()
	}
	return len(feeds), subscribers
}

// Close ends every subscription and rejects new ones.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	feeds := c.feeds
	c.feeds = make(map[string]*feed)
	c.mu.Unlock()

	for _, f := range feeds {
		f.mu.Lock()
		subs := make([]*Subscription, 0, len(f.subs))
		for sub := range f.subs {
			subs = append(subs, sub)
		}
		f.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}

func (c *Channel) acquireFeed(code string) (*feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	f := c.feeds[code]
	if f == nil || f.removed.Load() {
		f = &feed{subs: make(map[*Subscription]struct{})}
		c.feeds[code] = f
	}
	return f, nil
}

// releaseFeed drops an empty feed from the room index.
func (c *Channel) releaseFeed(code string, f *feed) {
	f.mu.Lock()
	empty := len(f.subs) == 0
	if empty {
		f.removed.Store(true)
	}
	f.mu.Unlock()
	if !empty {
		return
	}

	c.mu.Lock()
	if c.feeds[code] == f {
		delete(c.feeds, code)
	}
	c.mu.Unlock()
}

func newSnapshot(code string, messages []domain.Message) domain.Snapshot {
	if messages == nil {
		messages = []domain.Message{}
	}
	return domain.Snapshot{RoomCode: code, Messages: messages, At: time.Now()}
}
