package editor

import "sync"

// Topic names a bus channel.
type Topic string

const (
	TopicHovered       Topic = "hovered"        // *Context or nil
	TopicSelected      Topic = "selected"       // *Context or nil
	TopicSelectionText Topic = "selection-text" // bool
	TopicMutation      Topic = "mutation"       // mutation.Batch
	TopicDirty         Topic = "dirty"          // bool
	TopicOverlay       Topic = "overlay"        // OverlayState
)

// Event is one bus message.
type Event struct {
	Topic   Topic
	Payload any
}

// Bus is a synchronous publish/subscribe emitter. Handlers run on the
// publishing goroutine, after the session lock is released.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]subscriber
	next uint64
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for topic and returns a function removing it.
func (b *Bus) Subscribe(topic Topic, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every subscriber of topic, in subscription
// order.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, s := range subs {
		s.fn(ev)
	}
}
