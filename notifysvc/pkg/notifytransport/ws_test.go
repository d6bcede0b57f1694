package notifytransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/gorilla/websocket"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authservice"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authtransport"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/notifysvc/hub"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func setup(t *testing.T) (*hub.Hub, string) {
	t.Helper()

	h := hub.New(4, discard.NewGauge(), discard.NewCounter(), log.NewNopLogger())
	guard := authtransport.Guard(secret, authsvc.NewClaimsFactory("iss", "aud"), inmem.NewMemoryClient())
	srv := httptest.NewServer(NewWebSocketHandler(h, guard, log.NewNopLogger()))
	t.Cleanup(srv.Close)

	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func token(t *testing.T, id string, role usersvc.RoleName) string {
	t.Helper()
	at, err := authservice.NewTokenizer(secret, "iss", "aud", time.Hour).Generate(usersvc.Identity{ID: id, Role: role})
	require.NoError(t, err)
	return at.Hash
}

func TestSubscribeWithQueryToken(t *testing.T) {
	h, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?access_token="+token(t, "alice", usersvc.RoleUser), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, time.Millisecond)

	hidden, err := notifysvc.NewEvent(notifysvc.EventTaskCreated, "bob", map[string]string{"title": "bob's"})
	require.NoError(t, err)
	visible, err := notifysvc.NewEvent(notifysvc.EventTaskCreated, "alice", map[string]string{"title": "alice's"})
	require.NoError(t, err)
	require.NoError(t, h.Publish(context.Background(), hidden))
	require.NoError(t, h.Publish(context.Background(), visible))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &frame))
	assert.Equal(t, "TaskCreated", frame.Event)
	assert.Equal(t, "alice's", frame.Payload["title"])

	conn.Close()
	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, time.Millisecond)
}

func TestSubscribeWithHeaderToken(t *testing.T) {
	h, url := setup(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t, "admin", usersvc.RoleAdmin))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, time.Millisecond)
}

func TestSubscribeUnauthorized(t *testing.T) {
	_, url := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?access_token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
