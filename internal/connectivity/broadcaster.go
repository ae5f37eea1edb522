package connectivity

import (
	"sync"
	"time"
)

// Broadcaster holds the current online flag and fans transitions out to
// subscribers. Setting the same state twice does not notify anyone.
type Broadcaster struct {
	mu     sync.Mutex
	online bool
	nextID uint64
	subs   []subscription
	now    func() time.Time
}

type subscription struct {
	id uint64
	fn func(Event)
}

// NewBroadcaster returns a broadcaster starting in the given state.
func NewBroadcaster(initial bool) *Broadcaster {
	return &Broadcaster{online: initial, now: time.Now}
}

func (b *Broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Set records the new state and, when it differs from the current one,
// calls every subscriber once with the transition. It reports whether a
// transition happened. Handlers run on the caller's goroutine after the
// lock is released.
func (b *Broadcaster) Set(online bool, source string) bool {
	b.mu.Lock()
	if b.online == online {
		b.mu.Unlock()
		return false
	}
	b.online = online
	event := Event{Online: online, At: b.now(), Source: source}
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
	return true
}
