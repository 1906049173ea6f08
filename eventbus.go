package necs

import (
	"sync"

	"go.uber.org/zap"
)

// Event names published by the runtime itself. These are the external
// contract other systems key off of.
const (
	// EventEntityBuilt is published after a successful entity build. The
	// payload is an EntityBuiltEvent.
	EventEntityBuilt = "EntityBuilt"

	// EventEntityDestroyed is published when Destroy begins, before
	// component teardown. The payload is an EntityDestroyedEvent.
	EventEntityDestroyed = "EntityDestroyed"
)

// EntityBuiltEvent is the payload of EventEntityBuilt.
type EntityBuiltEvent struct {
	Entity *Entity
}

// EntityDestroyedEvent is the payload of EventEntityDestroyed.
type EntityDestroyedEvent struct {
	Entity *Entity
}

// Signal is a single named event channel: subscribers connect to it and
// every Fire delivers the payload to all of them. The default implementation
// isolates subscriber panics; host-supplied implementations should do the
// same.
type Signal interface {
	// Connect registers a subscriber and returns a disconnect func. The
	// disconnect func is idempotent.
	Connect(fn func(payload any)) (disconnect func())

	// Fire delivers the payload to every connected subscriber.
	Fire(payload any)
}

// SignalFactory constructs the Signal used for a named event. Hosts plug in
// their own signal implementation through WithSignalFactory.
type SignalFactory func(name string) Signal

// EventBus is a lazy pub/sub registry keyed by event name. Signals are
// created on first use. Publishing never blocks on subscribers: delivery is
// dispatched as a deferred task on the runtime's scheduler, so a subscriber
// may observe state that has changed again by the time it runs.
type EventBus struct {
	rt      *Runtime
	factory SignalFactory

	mu      sync.RWMutex
	signals map[string]Signal
}

func newEventBus(rt *Runtime, factory SignalFactory) *EventBus {
	b := &EventBus{rt: rt, signals: make(map[string]Signal)}
	if factory == nil {
		factory = func(name string) Signal {
			return newSignal(rt.log.With(zap.String("event", name)))
		}
	}
	b.factory = factory
	return b
}

// Subscribe connects fn to the named event, creating the signal if needed,
// and returns an unsubscribe func.
func (b *EventBus) Subscribe(name string, fn func(payload any)) (unsubscribe func()) {
	return b.signal(name).Connect(fn)
}

// Publish fires the named event with the given payload. Delivery is
// asynchronous; Publish returns immediately.
func (b *EventBus) Publish(name string, payload any) {
	sig := b.signal(name)
	b.rt.Schedule(nil, 0, func() {
		sig.Fire(payload)
	})
}

// signal returns the Signal for name, creating it lazily.
func (b *EventBus) signal(name string) Signal {
	b.mu.RLock()
	sig, ok := b.signals[name]
	b.mu.RUnlock()
	if ok {
		return sig
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sig, ok = b.signals[name]; ok {
		return sig
	}
	sig = b.factory(name)
	b.signals[name] = sig
	return sig
}

// signalImpl is the default Signal: a plain subscriber list. One failing
// subscriber must not prevent the others from running, so every delivery is
// wrapped in a recover.
type signalImpl struct {
	log    *zap.Logger
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(any)
	order  []uint64
}

func newSignal(log *zap.Logger) *signalImpl {
	return &signalImpl{log: log, subs: make(map[uint64]func(any))}
}

func (s *signalImpl) Connect(fn func(payload any)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			for i, o := range s.order {
				if o == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

func (s *signalImpl) Fire(payload any) {
	s.mu.Lock()
	fns := make([]func(any), 0, len(s.order))
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("event subscriber panicked", zap.Any("panic", r))
				}
			}()
			fn(payload)
		}()
	}
}
