package hub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub(buffer int) *Hub {
	return New(buffer, discard.NewGauge(), discard.NewCounter(), log.NewNopLogger())
}

func event(t *testing.T, scope string) notifysvc.Event {
	t.Helper()
	e, err := notifysvc.NewEvent(notifysvc.EventTaskCreated, scope, map[string]string{"title": "x"})
	require.NoError(t, err)
	return e
}

func received(s *Subscription) int {
	n := 0
	for {
		select {
		case <-s.C():
			n++
		default:
			return n
		}
	}
}

func TestPublishVisibility(t *testing.T) {
	h := newHub(8)
	admin := h.Subscribe(notifysvc.Viewer{UserID: "admin", Role: usersvc.RoleAdmin})
	alice := h.Subscribe(notifysvc.Viewer{UserID: "alice", Role: usersvc.RoleUser})
	bob := h.Subscribe(notifysvc.Viewer{UserID: "bob", Role: usersvc.RoleUser})

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, event(t, "alice")))
	require.NoError(t, h.Publish(ctx, event(t, notifysvc.ScopeAll)))

	assert.Equal(t, 2, received(admin))
	assert.Equal(t, 2, received(alice))
	assert.Equal(t, 1, received(bob))
}

func TestFrame(t *testing.T) {
	h := newHub(1)
	s := h.Subscribe(notifysvc.Viewer{UserID: "alice", Role: usersvc.RoleUser})

	require.NoError(t, h.Publish(context.Background(), event(t, "alice")))

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(<-s.C(), &frame))
	assert.Equal(t, "TaskCreated", frame["event"])
	assert.Equal(t, map[string]interface{}{"title": "x"}, frame["payload"])
	assert.NotContains(t, frame, "scope")
}

func TestSlowSubscriberDrops(t *testing.T) {
	h := newHub(1)
	s := h.Subscribe(notifysvc.Viewer{UserID: "alice", Role: usersvc.RoleUser})

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Publish(context.Background(), event(t, notifysvc.ScopeAll)))
	}
	assert.Equal(t, 1, received(s))
}

func TestUnsubscribe(t *testing.T) {
	h := newHub(1)
	s := h.Subscribe(notifysvc.Viewer{UserID: "alice", Role: usersvc.RoleUser})
	assert.Equal(t, 1, h.Len())

	h.Unsubscribe(s)
	h.Unsubscribe(s)
	assert.Equal(t, 0, h.Len())

	_, ok := <-s.C()
	assert.False(t, ok)

	require.NoError(t, h.Publish(context.Background(), event(t, notifysvc.ScopeAll)))
}
