package manager

import "sync"

// Broadcaster fans events out to subscribers, typically /events SSE
// streams. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	missed uint64
}

func NewBroadcaster() *Broadcaster { return &Broadcaster{subs: make(map[int]chan Event)} }

// Subscribe registers a subscriber with a buffer of buf events. The
// returned cancel func unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.missed++
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Missed returns how many deliveries were dropped on full buffers.
func (b *Broadcaster) Missed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.missed
}
