package events

import (
	"sync"
)

// Bus is a lightweight pub/sub broker using channels. All core components
// publish here; the websocket layer and tests subscribe.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an
// unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Envelope pairs a payload with its topic for merged subscriptions.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

// SubscribeMany merges several topics into one channel of Envelopes. Used by
// the websocket stream, which forwards every UI-relevant topic on one socket.
func (b *Bus) SubscribeMany(buffer int, topics ...Event) (<-chan Envelope, func()) {
	out := make(chan Envelope, buffer)
	var unsubs []func()
	var wg sync.WaitGroup

	for _, topic := range topics {
		ch, unsub := b.Subscribe(topic, buffer)
		unsubs = append(unsubs, unsub)
		wg.Add(1)
		go func(t Event, in <-chan any) {
			defer wg.Done()
			for msg := range in {
				select {
				case out <- Envelope{Event: t, Payload: msg}:
				default:
					// drop if the merged reader is slow
				}
			}
		}(topic, ch)
	}

	cancel := func() {
		for _, u := range unsubs {
			u()
		}
		wg.Wait()
		close(out)
	}
	return out, cancel
}

// Publish fan-outs the payload to subscribers asynchronously to avoid blocking.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}
