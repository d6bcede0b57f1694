package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/gorilla/websocket"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
	"github.com/ichigozero/taskdesk/config"
	"github.com/ichigozero/taskdesk/notifysvc/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var admin = config.AdminConfig{UserName: "admin", Email: "admin@example.com", Password: "Admin@123"}

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := libgorm.Open(sqlite.Open(dsn), &libgorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, migrate(db))
	require.NoError(t, seed(context.Background(), db, admin))

	h := hub.New(8, discard.NewGauge(), discard.NewCounter(), log.NewNopLogger())
	a := app{
		db:     db,
		jwt:    config.JWTConfig{Secret: "test-secret", Issuer: "taskdesk", Audience: "taskdesk-web", TTL: time.Hour},
		login:  config.LoginConfig{Rate: 100, Burst: 100},
		tokens: inmem.NewMemoryClient(),
		hub:    h,
		instruments: instruments{
			userCount:   discard.NewCounter(),
			userLatency: discard.NewHistogram(),
			authCount:   discard.NewCounter(),
			authLatency: discard.NewHistogram(),
			taskCount:   discard.NewCounter(),
			taskLatency: discard.NewHistogram(),
		},
		publisher: h,
		logger:    log.NewNopLogger(),
	}

	srv := httptest.NewServer(a.handler())
	t.Cleanup(srv.Close)
	return srv, h
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

func login(t *testing.T, srv *httptest.Server, email, password string) (string, string) {
	t.Helper()

	code, body := do(t, srv, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, string(body))

	var session struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.Token)
	return session.Token, session.Role
}

func TestTaskLifecycle(t *testing.T) {
	srv, h := newTestServer(t)

	code, body := do(t, srv, "POST", "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Secret@1",
	})
	require.Equal(t, http.StatusOK, code, string(body))

	aliceToken, role := login(t, srv, "alice@example.com", "Secret@1")
	assert.Equal(t, "User", role)
	adminToken, role := login(t, srv, admin.Email, admin.Password)
	assert.Equal(t, "Admin", role)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hubs/tasks?access_token=" + adminToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, time.Millisecond)

	code, body = do(t, srv, "POST", "/api/task", aliceToken, map[string]string{
		"title":       "Write report",
		"description": "Quarterly numbers",
		"status":      "Pending",
		"priority":    "High",
		"dueDate":     "2030-01-02",
		"category":    "Work",
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	var created struct {
		ID       uint64 `json:"id"`
		UserName string `json:"userName"`
		Version  uint64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "alice", created.UserName)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"event":"TaskCreated"`)
	assert.Contains(t, string(frame), "Write report")

	code, body = do(t, srv, "GET", "/api/task", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "Write report")

	code, body = do(t, srv, "GET", "/api/dashboard", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"role":"User","taskCounts":{"completed":0,"inProgress":0,"pending":1}}`, string(body))

	code, body = do(t, srv, "PUT", fmt.Sprintf("/api/task/%d", created.ID), aliceToken, map[string]interface{}{
		"title":       "Write report",
		"description": "Quarterly numbers",
		"status":      "Completed",
		"priority":    "High",
		"dueDate":     "2030-01-02",
		"category":    "Work",
		"version":     created.Version,
	})
	require.Equal(t, http.StatusOK, code, string(body))

	code, _ = do(t, srv, "PUT", fmt.Sprintf("/api/task/%d", created.ID), aliceToken, map[string]interface{}{
		"title":       "Stale",
		"description": "Quarterly numbers",
		"status":      "Pending",
		"priority":    "Low",
		"dueDate":     "2030-01-02",
		"category":    "Work",
		"version":     created.Version,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, srv, "DELETE", fmt.Sprintf("/api/task/%d", created.ID), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, srv, "POST", "/api/auth/logout", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, srv, "GET", "/api/task", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProfile(t *testing.T) {
	srv, _ := newTestServer(t)
	token, _ := login(t, srv, admin.Email, admin.Password)

	code, body := do(t, srv, "GET", "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"userName":"admin","email":"admin@example.com"}`, string(body))

	code, _ = do(t, srv, "PUT", "/api/profile/change-password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "Another@2",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, srv, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, _ = do(t, srv, "GET", "/api/task", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = do(t, srv, "GET", "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body), `"statusCode":404`)
}
