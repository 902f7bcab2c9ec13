// Package eventbus is an in-process publish/subscribe hub for room events.
package eventbus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/events"
)

// Handler handles one event.
type Handler func(events.Event)

type subscription struct {
	id  uint64
	typ events.Type // empty means every type
	h   Handler
}

// Bus dispatches synchronously, in subscription order, on the publisher's
// goroutine. A panicking handler is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers h for events of type t. The returned func removes it.
func (b *Bus) Subscribe(t events.Type, h Handler) func() {
	return b.add(t, h)
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.add("", h)
}

func (b *Bus) add(t events.Type, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: t, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every matching handler before returning.
func (b *Bus) Publish(e events.Event) {
	t := e.Type()
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.typ == "" || s.typ == t {
			targets = append(targets, s.h)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.dispatch(t, h, e)
	}
}

func (b *Bus) dispatch(t events.Type, h Handler, e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "eventbus").Str("event", string(t)).Interface("panic", r).Msg("handler panic")
		}
	}()
	h(e)
}

// HandlerCount returns the number of handlers that would receive type t.
func (b *Bus) HandlerCount(t events.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.typ == "" || s.typ == t {
			n++
		}
	}
	return n
}

// On subscribes a handler typed to one concrete event.
func On[E events.Event](b *Bus, fn func(E)) func() {
	var zero E
	return b.Subscribe(zero.Type(), func(e events.Event) {
		if v, ok := e.(E); ok {
			fn(v)
		}
	})
}
