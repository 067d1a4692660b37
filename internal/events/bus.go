package events

import (
	"context"
	"reflect"
	"sync"

	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// Bus carries events from the builder and the watcher to in-process
// consumers.
//
// Subscriptions are keyed by type. An interface subscription receives every
// event whose concrete type implements it; a concrete subscription receives
// exact matches only. Publish blocks until every matching subscriber took the
// event or ctx is done.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	nextID uint64
	topics map[reflect.Type]map[uint64]*subscription
}

// subscription owns its channel. Senders hold the read lock while sending;
// shutdown closes done first so blocked senders leave, then takes the write
// lock before closing the channel.
type subscription struct {
	typ     reflect.Type
	mu      sync.RWMutex
	once    sync.Once
	done    chan struct{}
	stopped bool
	deliver func(ctx context.Context, evt any, done <-chan struct{}) error
	closeCh func()
}

func (s *subscription) send(ctx context.Context, evt any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return nil
	}
	return s.deliver(ctx, evt, s.done)
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.stopped = true
		s.closeCh()
		s.mu.Unlock()
	})
}

func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]map[uint64]*subscription)}
}

// Subscribe returns a channel of events of type T and a function that ends
// the subscription and closes the channel. Subscribing to a closed bus
// yields an already closed channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	sub := &subscription{
		typ:     reflect.TypeFor[T](),
		done:    make(chan struct{}),
		closeCh: func() { close(ch) },
	}
	sub.deliver = func(ctx context.Context, evt any, done <-chan struct{}) error {
		v, ok := evt.(T)
		if !ok {
			return ferrors.InternalError("event does not match subscription").
				WithContext("subscribed", sub.typ.String()).
				WithContext("published", reflect.TypeOf(evt).String()).
				Build()
		}
		select {
		case ch <- v:
		case <-done:
		case <-ctx.Done():
			return ferrors.WrapError(ctx.Err(), ferrors.CategoryNotify, "event publish canceled").
				WithContext("event_type", sub.typ.String()).
				Build()
		}
		return nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	if b.topics[sub.typ] == nil {
		b.topics[sub.typ] = make(map[uint64]*subscription)
	}
	b.topics[sub.typ][id] = sub
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if subs := b.topics[sub.typ]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.topics, sub.typ)
			}
		}
		b.mu.Unlock()
		sub.stop()
	}
}

// SubscriberCount reports the live subscriptions registered for exactly T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[reflect.TypeFor[T]()])
}

// Publish hands evt to every matching subscriber in turn.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	targets, err := b.match(reflect.TypeOf(evt))
	if err != nil {
		return err
	}
	for _, s := range targets {
		if err := s.send(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) match(t reflect.Type) ([]*subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ferrors.NewError(ferrors.CategoryNotify, "event bus is closed").Build()
	}
	var out []*subscription
	for typ, subs := range b.topics {
		if typ != t && (typ.Kind() != reflect.Interface || !t.Implements(typ)) {
			continue
		}
		for _, s := range subs {
			out = append(out, s)
		}
	}
	return out, nil
}

// Close ends every subscription. Later publishes fail.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[reflect.Type]map[uint64]*subscription)
	b.mu.Unlock()

	for _, subs := range topics {
		for _, s := range subs {
			s.stop()
		}
	}
}
