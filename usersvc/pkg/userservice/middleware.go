package userservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskdesk/usersvc"
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

func (mw loggingMiddleware) Register(ctx context.Context, username, email, password string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Register", "username", username, "email", email, "id", u.ID, "err", err)
	}()
	return mw.next.Register(ctx, username, email, password)
}

func (mw loggingMiddleware) VerifyCredentials(ctx context.Context, email, password string) (i usersvc.Identity, err error) {
	defer func() {
		mw.logger.Log("method", "VerifyCredentials", "email", email, "id", i.ID, "role", i.Role, "err", err)
	}()
	return mw.next.VerifyCredentials(ctx, email, password)
}

func (mw loggingMiddleware) Profile(ctx context.Context, id string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Profile", "id", id, "err", err)
	}()
	return mw.next.Profile(ctx, id)
}

func (mw loggingMiddleware) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) (err error) {
	defer func() {
		mw.logger.Log("method", "ChangePassword", "id", id, "err", err)
	}()
	return mw.next.ChangePassword(ctx, id, currentPassword, newPassword)
}

func (mw loggingMiddleware) IsExists(ctx context.Context, id string) (v bool, err error) {
	defer func() {
		mw.logger.Log("method", "IsExists", "id", id, "v", v, "err", err)
	}()
	return mw.next.IsExists(ctx, id)
}

func (mw loggingMiddleware) SelectList(ctx context.Context) (items []usersvc.SelectItem, err error) {
	defer func() {
		mw.logger.Log("method", "SelectList", "n", len(items), "err", err)
	}()
	return mw.next.SelectList(ctx)
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

func (mw instrumentingMiddleware) observe(method string, begin time.Time) {
	mw.requestCount.With("method", method).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Register(ctx context.Context, username, email, password string) (usersvc.User, error) {
	defer mw.observe("register", time.Now())
	return mw.next.Register(ctx, username, email, password)
}

func (mw instrumentingMiddleware) VerifyCredentials(ctx context.Context, email, password string) (usersvc.Identity, error) {
	defer mw.observe("verify_credentials", time.Now())
	return mw.next.VerifyCredentials(ctx, email, password)
}

func (mw instrumentingMiddleware) Profile(ctx context.Context, id string) (usersvc.User, error) {
	defer mw.observe("profile", time.Now())
	return mw.next.Profile(ctx, id)
}

func (mw instrumentingMiddleware) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	defer mw.observe("change_password", time.Now())
	return mw.next.ChangePassword(ctx, id, currentPassword, newPassword)
}

func (mw instrumentingMiddleware) IsExists(ctx context.Context, id string) (bool, error) {
	defer mw.observe("is_exists", time.Now())
	return mw.next.IsExists(ctx, id)
}

func (mw instrumentingMiddleware) SelectList(ctx context.Context) ([]usersvc.SelectItem, error) {
	defer mw.observe("select_list", time.Now())
	return mw.next.SelectList(ctx)
}
