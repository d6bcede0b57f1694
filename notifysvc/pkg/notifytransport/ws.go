package notifytransport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/httpjson"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/notifysvc/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

type handler struct {
	hub      *hub.Hub
	viewer   endpoint.Endpoint
	upgrader websocket.Upgrader
	logger   log.Logger
}

// NewWebSocketHandler upgrades authenticated requests to a WebSocket that
// receives the hub's events. Browsers cannot set headers on a WebSocket
// handshake, so the token may also come in the access_token query parameter.
func NewWebSocketHandler(h *hub.Hub, guard endpoint.Middleware, logger log.Logger) http.Handler {
	return &handler{
		hub:    h,
		viewer: guard(makeViewerEndpoint()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func makeViewerEndpoint() endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		claims, err := authsvc.ClaimsFromContext(ctx)
		if err != nil {
			return nil, err
		}
		return notifysvc.Viewer{UserID: claims.Subject, Role: claims.Role}, nil
	}
}

func tokenToContext(ctx context.Context, r *http.Request) context.Context {
	ctx = kitjwt.HTTPToContext()(ctx, r)
	if _, ok := ctx.Value(kitjwt.JWTTokenContextKey).(string); ok {
		return ctx
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return context.WithValue(ctx, kitjwt.JWTTokenContextKey, strings.TrimSpace(token))
	}
	return ctx
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.viewer(tokenToContext(r.Context(), r), nil)
	if err != nil {
		code := http.StatusInternalServerError
		if authsvc.IsUnauthorized(err) {
			code = http.StatusUnauthorized
		}
		httpjson.WriteError(w, code, err)
		return
	}
	viewer := resp.(notifysvc.Viewer)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Debug(h.logger).Log("during", "Upgrade", "err", err)
		return
	}

	sub := h.hub.Subscribe(viewer)
	logger := log.With(h.logger, "user_id", viewer.UserID)
	logger.Log("subscription", "open")

	go h.write(conn, sub, logger)
	h.read(conn)

	h.hub.Unsubscribe(sub)
	logger.Log("subscription", "closed")
}

// read discards client messages and returns when the connection goes away.
func (h *handler) read(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// write is the only goroutine writing to conn.
func (h *handler) write(conn *websocket.Conn, sub *hub.Subscription, logger log.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					level.Debug(logger).Log("during", "WriteMessage", "err", err)
				}
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
