package presenter

import (
	"sync"
	"time"

	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-hive/hivewatch/internal/suppression"
	"github.com/go-hive/hivewatch/internal/surveillance"
)

type EventType string

const (
	EventAlertRaised        EventType = "alert_raised"
	EventAlertCleared       EventType = "alert_cleared"
	EventWatchStarted       EventType = "watch_started"
	EventWatchStopped       EventType = "watch_stopped"
	EventSuppressionChanged EventType = "suppression_changed"
	EventFetchFailed        EventType = "fetch_failed"
)

// Event is a state change observed by the adapter.
type Event struct {
	Type        EventType                 `json:"type"`
	EntityID    string                    `json:"entityId,omitempty"`
	Alert       *surveillance.ActiveAlert `json:"alert,omitempty"`
	Reading     *reading.Reading          `json:"reading,omitempty"`
	Suppression *suppression.Status       `json:"suppression,omitempty"`
	Error       string                    `json:"error,omitempty"`
	At          time.Time                 `json:"at"`
}

// Broker fans events out to subscribers. Slow subscribers miss events instead of blocking
// the publisher.
type Broker struct {
	mtx    sync.Mutex
	closed bool
	subs   map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber with the given buffer. The returned func unsubscribes and
// closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mtx.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mtx.Lock()
			defer b.mtx.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *Broker) Publish(e Event) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (b *Broker) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
