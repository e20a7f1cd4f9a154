package session

import (
	"context"
	"slices"
	"sync"

	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

// Event names an authentication state change.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Change is delivered to subscribers.
type Change struct {
	Event Event
	User  remote.User
}

// Listener receives auth state changes. It runs on the request goroutine and
// must not block.
type Listener func(ctx context.Context, c Change)

// Notifier fans auth state changes out to subscribers.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Listener
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn Listener) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify calls every subscriber in registration order.
func (n *Notifier) Notify(ctx context.Context, c Change) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	n.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		n.mu.Lock()
		fn, ok := n.subs[id]
		n.mu.Unlock()
		if ok {
			fn(ctx, c)
		}
	}
}

// EvictionNotifier reports sessions pushed out of a full Store as sign-outs.
// Pass it to NewStore through cache.WithEvictionHook.
func EvictionNotifier(n *Notifier, logger *log.Logger) func(id string, sess remote.Session) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSession)
	return func(_ string, sess remote.Session) {
		logger.Info("Session evicted at capacity", log.FieldUserID, sess.User.ID)
		n.Notify(context.Background(), Change{Event: EventSignedOut, User: sess.User})
	}
}
