// Package events carries change notifications for stored rows from the
// writers that produce them to the caches and streams that react to them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/metrics"
)

// Table names a source of change events.
type Table string

const (
	TableProjects    Table = "projects"
	TableTimeEntries Table = "time_entries"
	TableAPIKeys     Table = "api_keys"
)

// Action is the kind of change.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Event describes one row change.
type Event struct {
	Table  Table     `json:"table"`
	Action Action    `json:"action"`
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Publisher is implemented by anything that accepts change events.
type Publisher interface {
	Publish(e Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

// DefaultBuffer is the per-subscriber channel size used by NewBroker(0).
const DefaultBuffer = 64

type subscriber struct {
	tables map[Table]struct{}
	userID string
	ch     chan Event
	fn     func(Event)
}

func (s *subscriber) wants(e Event) bool {
	if s.userID != "" && e.UserID != s.userID {
		return false
	}
	if len(s.tables) == 0 {
		return true
	}
	_, ok := s.tables[e.Table]
	return ok
}

// Broker fans events out to subscribers.
//
// Channel subscribers are lossy: when a subscriber's buffer is full the
// event is dropped for that subscriber. Handlers registered with OnChange
// run synchronously inside Publish and never miss an event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
}

// NewBroker creates a broker. A non-positive buffer uses DefaultBuffer.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[uint64]*subscriber),
		buffer: buffer,
	}
}

func tableSet(tables []Table) map[Table]struct{} {
	set := make(map[Table]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return set
}

func (b *Broker) add(s *subscriber) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, false
	}
	b.nextID++
	b.subs[b.nextID] = s
	metrics.EventSubscribers.Inc()
	return b.nextID, true
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	metrics.EventSubscribers.Dec()
	if s.ch != nil {
		close(s.ch)
	}
}

// Subscribe returns a channel receiving events for the given tables, or
// for every table when none are given. The channel is closed once ctx is
// done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, tables ...Table) <-chan Event {
	return b.SubscribeUser(ctx, "", tables...)
}

// SubscribeUser is Subscribe restricted to rows owned by userID. Other
// users' events never reach the channel or count against its buffer.
// An empty userID matches every user.
func (b *Broker) SubscribeUser(ctx context.Context, userID string, tables ...Table) <-chan Event {
	s := &subscriber{tables: tableSet(tables), userID: userID, ch: make(chan Event, b.buffer)}
	id, ok := b.add(s)
	if !ok {
		close(s.ch)
		return s.ch
	}
	go func() {
		<-ctx.Done()
		b.remove(id)
	}()
	return s.ch
}

// OnChange registers fn for events on the given tables. The returned
// function unregisters it. fn must not call back into the broker.
func (b *Broker) OnChange(fn func(Event), tables ...Table) (cancel func()) {
	id, ok := b.add(&subscriber{tables: tableSet(tables), fn: fn})
	if !ok {
		return func() {}
	}
	return func() { b.remove(id) }
}

// Publish delivers e to every interested subscriber without blocking on
// channel subscribers.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(e.Table)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e) {
			continue
		}
		if s.fn != nil {
			s.fn(e)
			continue
		}
		select {
		case s.ch <- e:
		default:
			metrics.EventsDroppedTotal.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		metrics.EventSubscribers.Dec()
		if s.ch != nil {
			close(s.ch)
		}
	}
}
