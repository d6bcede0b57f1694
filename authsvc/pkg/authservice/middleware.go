package authservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/usersvc/pkg/userendpoint"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Login(ctx context.Context, email, password string) (s Session, err error) {
	defer func() {
		mw.logger.Log("method", "Login", "email", email, "role", s.Role, "err", err)
	}()
	return mw.next.Login(ctx, email, password)
}

func (mw loggingMiddleware) Logout(ctx context.Context, tokenID string, expiresAt time.Time) (err error) {
	defer func() {
		mw.logger.Log("method", "Logout", "jti", tokenID, "err", err)
	}()
	return mw.next.Logout(ctx, tokenID, expiresAt)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) Login(ctx context.Context, email, password string) (Session, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "login").Add(1)
		mw.requestLatency.With("method", "login").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Login(ctx, email, password)
}

func (mw instrumentingMiddleware) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "logout").Add(1)
		mw.requestLatency.With("method", "logout").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Logout(ctx, tokenID, expiresAt)
}

// ProxingMiddleware resolves the credentials through the user service before
// Login runs.
func ProxingMiddleware(verifyCredentialsEndpoint endpoint.Endpoint) Middleware {
	return func(next Service) Service {
		return proxingMiddleware{next, verifyCredentialsEndpoint}
	}
}

type proxingMiddleware struct {
	next              Service
	verifyCredentials endpoint.Endpoint
}

func (mw proxingMiddleware) Login(ctx context.Context, email, password string) (Session, error) {
	response, err := mw.verifyCredentials(ctx, userendpoint.VerifyCredentialsRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, err
	}

	resp := response.(userendpoint.VerifyCredentialsResponse)
	if resp.Err != nil {
		return Session{}, resp.Err
	}

	ctx = context.WithValue(ctx, authsvc.IdentityContextKey, resp.Identity)

	return mw.next.Login(ctx, email, password)
}

func (mw proxingMiddleware) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return mw.next.Logout(ctx, tokenID, expiresAt)
}
