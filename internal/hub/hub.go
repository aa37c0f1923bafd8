// Package hub owns the trade history buffer and the set of stream
// subscribers. Every mutation goes through the Hub's mutex; fan-out is
// fire-and-forget and relies on each transport to report disconnects.
package hub

import (
	"sync"
	"time"

	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/model"

	"github.com/sirupsen/logrus"
)

// Event names on the wire.
const (
	EventHistory = "history"
	EventTrade   = "trade"
	EventPing    = "ping"
)

const (
	DefaultCapacity    = 8000
	DefaultReplayLimit = 2000
	DefaultKeepAlive   = 15 * time.Second
)

// Event is one message pushed to a subscriber. Data is a []*model.Trade for
// history, a *model.Trade for trade and nil for ping.
type Event struct {
	Name string
	Data interface{}
}

// Subscriber receives events. Send must not block; an error means the event
// was dropped for this subscriber and nothing more.
type Subscriber interface {
	ID() string
	Send(Event) error
}

// Options configures a Hub. Zero values take the defaults.
type Options struct {
	Capacity    int
	ReplayLimit int
	KeepAlive   time.Duration
	Metrics     *metrics.Metrics
}

type member struct {
	sub  Subscriber
	stop chan struct{}
}

// Hub is the single owner of the history buffer and subscriber set.
type Hub struct {
	mu          sync.Mutex
	history     []*model.Trade // newest first
	members     []*member      // registration order
	capacity    int
	replayLimit int
	keepAlive   time.Duration
	metrics     *metrics.Metrics
}

// New creates an empty hub.
func New(opts Options) *Hub {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = DefaultReplayLimit
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	return &Hub{
		history:     make([]*model.Trade, 0, opts.Capacity),
		capacity:    opts.Capacity,
		replayLimit: opts.ReplayLimit,
		keepAlive:   opts.KeepAlive,
		metrics:     opts.Metrics,
	}
}

// Subscribe registers sub and hands it the newest history prefix. The snapshot
// and the registration happen under one lock, so every trade published
// afterwards reaches sub at most once, in order. A Send that drops an event
// leaves a gap, never a reordering.
func (h *Hub) Subscribe(sub Subscriber) {
	m := &member{sub: sub, stop: make(chan struct{})}

	h.mu.Lock()
	snapshot := h.snapshotLocked(h.replayLimit)
	if err := sub.Send(Event{Name: EventHistory, Data: snapshot}); err != nil {
		logrus.WithFields(logrus.Fields{
			"subscriber": sub.ID(),
			"error":      err.Error(),
		}).Debug("History replay dropped")
	}
	h.members = append(h.members, m)
	count := len(h.members)
	h.mu.Unlock()

	h.setSubscriberGauge(count)
	go h.keepAliveLoop(m)

	logrus.WithFields(logrus.Fields{
		"subscriber":  sub.ID(),
		"replayed":    len(snapshot),
		"subscribers": count,
	}).Info("📡 Subscriber connected")
}

// Unsubscribe removes the subscriber with id and stops its keep-alive.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	var removed *member
	for i, m := range h.members {
		if m.sub.ID() == id {
			removed = m
			h.members = append(h.members[:i], h.members[i+1:]...)
			break
		}
	}
	count := len(h.members)
	h.mu.Unlock()

	if removed == nil {
		return
	}
	close(removed.stop)
	h.setSubscriberGauge(count)

	logrus.WithFields(logrus.Fields{
		"subscriber":  id,
		"subscribers": count,
	}).Info("🔌 Subscriber disconnected")
}

// Publish adds trade to the front of the history and pushes it to every
// subscriber in registration order.
func (h *Hub) Publish(trade *model.Trade) {
	if trade == nil {
		return
	}

	h.mu.Lock()
	if len(h.history) < h.capacity {
		h.history = append(h.history, nil)
	}
	copy(h.history[1:], h.history)
	h.history[0] = trade
	size := len(h.history)

	event := Event{Name: EventTrade, Data: trade}
	for _, m := range h.members {
		_ = m.sub.Send(event)
	}
	h.mu.Unlock()

	h.setHistoryGauge(size)
}

// Replace swaps the whole history for trades, which must already be newest
// first. Entries past capacity are dropped.
func (h *Hub) Replace(trades []*model.Trade) {
	if len(trades) > h.capacity {
		trades = trades[:h.capacity]
	}
	next := make([]*model.Trade, len(trades), h.capacity)
	copy(next, trades)

	h.mu.Lock()
	h.history = next
	h.mu.Unlock()

	h.setHistoryGauge(len(next))
}

// Snapshot returns a copy of up to limit newest trades. limit <= 0 means all.
func (h *Hub) Snapshot(limit int) []*model.Trade {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(limit)
}

// Len returns the number of trades held.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	members := h.members
	h.members = nil
	h.mu.Unlock()

	for _, m := range members {
		close(m.stop)
	}
	h.setSubscriberGauge(0)
}

func (h *Hub) snapshotLocked(limit int) []*model.Trade {
	n := len(h.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.Trade, n)
	copy(out, h.history[:n])
	return out
}

func (h *Hub) keepAliveLoop(m *member) {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			_ = m.sub.Send(Event{Name: EventPing})
		}
	}
}

func (h *Hub) setSubscriberGauge(n int) {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(n))
	}
}

func (h *Hub) setHistoryGauge(n int) {
	if h.metrics != nil {
		h.metrics.HistorySize.Set(float64(n))
	}
}
