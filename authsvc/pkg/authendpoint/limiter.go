package authendpoint

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	"golang.org/x/time/rate"
)

type contextKey int

// ClientContextKey holds the address of the client a request came from.
const ClientContextKey contextKey = iota

// Limiter decides whether a client may make another attempt.
type Limiter interface {
	Allow(client string) bool
}

// ClientLimiter keeps a token bucket per client. Buckets idle for longer
// than idle are forgotten.
type ClientLimiter struct {
	mtx       sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	clients   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewClientLimiter(limit rate.Limit, burst int, idle time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		clients: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *ClientLimiter) Allow(client string) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	now := l.now()
	b, ok := l.clients[client]
	if !ok {
		l.sweep(now)
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ClientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	for client, b := range l.clients {
		if now.Sub(b.seen) >= l.idle {
			delete(l.clients, client)
		}
	}
	l.lastSweep = now
}

func (l *ClientLimiter) Len() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.clients)
}

// RateLimitMiddleware rejects requests from clients l does not allow with
// ratelimit.ErrLimited.
func RateLimitMiddleware(l Limiter) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			client, _ := ctx.Value(ClientContextKey).(string)
			if !l.Allow(client) {
				return nil, ratelimit.ErrLimited
			}
			return next(ctx, request)
		}
	}
}
