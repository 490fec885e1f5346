package events

import (
	"sync"
)

// Unsubscribe removes a subscription.  Calling it more than once is safe.
type Unsubscribe func()

type subscription struct {
	id int
	fn func(Event)
}

// Bus fans events out to subscribers.  Subscribing is safe from any
// goroutine; handlers added during a Publish see only later events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	byName map[string][]subscription
	all    []subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{byName: make(map[string][]subscription)}
}

// Subscribe registers fn for events of type E.
func Subscribe[E Event](b *Bus, fn func(E)) Unsubscribe {
	var zero E
	name := zero.EventName()
	return b.add(name, func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}

// SubscribeAll registers fn for every event, after the typed subscribers.
func (b *Bus) SubscribeAll(fn func(Event)) Unsubscribe {
	return b.add("", fn)
}

func (b *Bus) add(name string, fn func(Event)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscription{id: b.nextID, fn: fn}
	if name == "" {
		b.all = append(b.all, sub)
	} else {
		b.byName[name] = append(b.byName[name], sub)
	}
	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, sub.id) })
	}
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.all
	if name != "" {
		list = b.byName[name]
	}
	out := make([]subscription, 0, len(list))
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	if name == "" {
		b.all = out
	} else {
		b.byName[name] = out
	}
}

// Publish delivers e to its subscribers in subscription order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	typed := b.byName[e.EventName()]
	all := b.all
	b.mu.RUnlock()

	for _, s := range typed {
		s.fn(e)
	}
	for _, s := range all {
		s.fn(e)
	}
}
