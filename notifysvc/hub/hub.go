// Package hub delivers notification events to the subscribers connected to
// this process.
package hub

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskdesk/notifysvc"
)

type Subscription struct {
	viewer notifysvc.Viewer
	ch     chan []byte
	once   sync.Once
}

// C receives the frames of every event visible to the subscriber. It is
// closed by Unsubscribe.
func (s *Subscription) C() <-chan []byte { return s.ch }

type Hub struct {
	mtx    sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int

	subscribers metrics.Gauge
	dropped     metrics.Counter
	logger      log.Logger
}

// New returns a hub that buffers up to buffer frames per subscriber. Frames
// for a subscriber whose buffer is full are dropped and counted.
func New(buffer int, subscribers metrics.Gauge, dropped metrics.Counter, logger log.Logger) *Hub {
	return &Hub{
		subs:        make(map[*Subscription]struct{}),
		buffer:      buffer,
		subscribers: subscribers,
		dropped:     dropped,
		logger:      logger,
	}
}

func (h *Hub) Subscribe(v notifysvc.Viewer) *Subscription {
	s := &Subscription{viewer: v, ch: make(chan []byte, h.buffer)}

	h.mtx.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mtx.Unlock()

	h.subscribers.Set(float64(n))
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mtx.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	s.once.Do(func() { close(s.ch) })
	h.mtx.Unlock()

	h.subscribers.Set(float64(n))
}

// Publish hands the event to every subscriber allowed to see it. It never
// blocks on a slow subscriber.
func (h *Hub) Publish(_ context.Context, e notifysvc.Event) error {
	frame, err := e.Frame()
	if err != nil {
		return err
	}

	h.mtx.RLock()
	defer h.mtx.RUnlock()

	for s := range h.subs {
		if !e.VisibleTo(s.viewer) {
			continue
		}
		select {
		case s.ch <- frame:
		default:
			h.dropped.With("event", e.Name).Add(1)
			level.Debug(h.logger).Log("event", e.Name, "user_id", s.viewer.UserID, "err", "subscriber buffer full")
		}
	}
	return nil
}

func (h *Hub) Len() int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.subs)
}
