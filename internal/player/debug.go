package player

import "sync"

// debugBus fans debug overlay toggles out to renderer subscribers.
type debugBus struct {
	mu   sync.RWMutex
	subs map[chan bool]struct{}
}

func newDebugBus() *debugBus {
	return &debugBus{subs: make(map[chan bool]struct{})}
}

func (b *debugBus) subscribe() chan bool {
	ch := make(chan bool, 4)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *debugBus) unsubscribe(ch chan bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// publish never blocks; a slow subscriber misses toggles and catches up from
// the snapshot.
func (b *debugBus) publish(enabled bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- enabled:
		default:
		}
	}
}
