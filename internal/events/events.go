package events

import (
	"encoding/json"
	"sync"

	"rungroj/internal/models"

	"github.com/rs/zerolog"
)

// Filter decides whether a subscriber receives a change.
type Filter func(change models.ReservationChange) bool

// Handler reacts to a change.
type Handler func(change models.ReservationChange)

type subscription struct {
	filter  Filter
	handler Handler
}

// Bus provides in-process pub/sub for reservation changes.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscription
	nextID      uint64
	logger      *zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{
		subscribers: make(map[uint64]subscription),
		logger:      logger,
	}
}

// Subscribe registers handler for changes accepted by filter. A nil filter
// accepts everything. The returned function is idempotent.
func (b *Bus) Subscribe(filter func(models.ReservationChange) bool, handler func(models.ReservationChange)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = subscription{filter: filter, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// Publish notifies matching subscribers synchronously.
func (b *Bus) Publish(change models.ReservationChange) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.filter == nil || sub.filter(change) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	b.logger.Debug().
		Str("type", string(change.Type)).
		Str("reservation_id", change.New.ID).
		Int("subscribers", len(handlers)).
		Msg("Publishing reservation change")

	for _, handler := range handlers {
		handler(change)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ForUser matches status updates on the user's own reservations.
func ForUser(userID string) Filter {
	return func(change models.ReservationChange) bool {
		return change.Type == models.ChangeUpdate && change.New.UserID == userID
	}
}

// ForReservation matches updates on a single reservation.
func ForReservation(id string) Filter {
	return func(change models.ReservationChange) bool {
		return change.Type == models.ChangeUpdate && change.New.ID == id
	}
}

// All matches every change; used by the admin dashboard.
func All() Filter {
	return func(models.ReservationChange) bool { return true }
}

// Encode serializes a change for transport to the browser.
func Encode(change models.ReservationChange) ([]byte, error) {
	return json.Marshal(change)
}
