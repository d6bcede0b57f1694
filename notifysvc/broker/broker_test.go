package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinj/uuid"
)

// memoryBackend delivers every published message to every subscriber.
type memoryBackend struct {
	mtx  sync.Mutex
	subs []chan []byte
	err  error
}

func (m *memoryBackend) Publish(_ context.Context, _ string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, s := range m.subs {
		s <- data
	}
	return nil
}

func (m *memoryBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	ch := make(chan []byte, 16)
	m.mtx.Lock()
	m.subs = append(m.subs, ch)
	m.mtx.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-ch:
			_ = handler(ctx, data)
		}
	}
}

func (m *memoryBackend) Close() error { return nil }

func (m *memoryBackend) subscribers() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.subs)
}

type publisherFunc func(context.Context, notifysvc.Event) error

func (f publisherFunc) Publish(ctx context.Context, e notifysvc.Event) error { return f(ctx, e) }

func TestPublishAndRelay(t *testing.T) {
	b := &memoryBackend{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sinks [2]chan notifysvc.Event
	for i := range sinks {
		sink := make(chan notifysvc.Event, 1)
		sinks[i] = sink
		go Relay(ctx, b, "events", publisherFunc(func(_ context.Context, e notifysvc.Event) error {
			sink <- e
			return nil
		}), log.NewNopLogger())
	}
	require.Eventually(t, func() bool { return b.subscribers() == 2 }, time.Second, time.Millisecond)

	e, err := notifysvc.NewEvent(notifysvc.EventTaskCreated, "alice", map[string]int{"id": 1})
	require.NoError(t, err)
	require.NoError(t, NewPublisher(b, "events").Publish(ctx, e))

	for _, sink := range sinks {
		select {
		case got := <-sink:
			assert.Equal(t, e.Name, got.Name)
			assert.Equal(t, "alice", got.Scope)
			assert.JSONEq(t, `{"id":1}`, string(got.Payload))
		case <-time.After(time.Second):
			t.Fatal("event not relayed")
		}
	}
}

func TestRelaySkipsMalformed(t *testing.T) {
	b := &memoryBackend{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan notifysvc.Event, 1)
	go Relay(ctx, b, "events", publisherFunc(func(_ context.Context, e notifysvc.Event) error {
		sink <- e
		return nil
	}), log.NewNopLogger())
	require.Eventually(t, func() bool { return b.subscribers() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, b.Publish(ctx, "events", []byte("not json")))
	select {
	case e := <-sink:
		t.Fatalf("unexpected event %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisherBreaksCircuit(t *testing.T) {
	b := &memoryBackend{err: errors.New("broker down")}
	p := NewPublisher(b, "events")
	e := notifysvc.Event{Name: notifysvc.EventTaskCreated, Scope: notifysvc.ScopeAll, Payload: []byte(`{}`)}

	var last error
	for i := 0; i < 10; i++ {
		last = p.Publish(context.Background(), e)
	}
	assert.ErrorIs(t, last, gobreaker.ErrOpenState)
}

func TestNewMessageID(t *testing.T) {
	a, b := newMessageID(), newMessageID()
	assert.NotEqual(t, a, b)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
