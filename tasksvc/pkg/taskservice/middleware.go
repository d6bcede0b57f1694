package taskservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/ichigozero/taskdesk/usersvc"
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

func (mw loggingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) (v []tasksvc.View, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"role", a.Role,
			"n", len(v),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, a)
}

func (mw loggingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (v tasksvc.View, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, a, taskID)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (v tasksvc.View, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"title", in.Title,
			"assigned_to", v.AssignedToUserID,
			"task_id", v.ID,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, a, in)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.Input) (v tasksvc.View, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"version", in.Version,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, a, taskID, in)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, a, taskID)
}

func (mw loggingMiddleware) Dashboard(ctx context.Context, a tasksvc.Auth) (d tasksvc.Dashboard, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Dashboard",
			"jti", a.TokenID,
			"user_id", a.UserID,
			"role", a.Role,
			"err", err,
		)
	}()
	return mw.next.Dashboard(ctx, a)
}

func (mw loggingMiddleware) UserSelectList(ctx context.Context, a tasksvc.Auth) (items []usersvc.SelectItem, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UserSelectList",
			"user_id", a.UserID,
			"n", len(items),
			"err", err,
		)
	}()
	return mw.next.UserSelectList(ctx, a)
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

func (mw instrumentingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.View, error) {
	defer mw.observe("tasks", time.Now())
	return mw.next.Tasks(ctx, a)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.View, error) {
	defer mw.observe("task", time.Now())
	return mw.next.Task(ctx, a, taskID)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (tasksvc.View, error) {
	defer mw.observe("create_task", time.Now())
	return mw.next.CreateTask(ctx, a, in)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.Input) (tasksvc.View, error) {
	defer mw.observe("update_task", time.Now())
	return mw.next.UpdateTask(ctx, a, taskID, in)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error {
	defer mw.observe("delete_task", time.Now())
	return mw.next.DeleteTask(ctx, a, taskID)
}

func (mw instrumentingMiddleware) Dashboard(ctx context.Context, a tasksvc.Auth) (tasksvc.Dashboard, error) {
	defer mw.observe("dashboard", time.Now())
	return mw.next.Dashboard(ctx, a)
}

func (mw instrumentingMiddleware) UserSelectList(ctx context.Context, a tasksvc.Auth) ([]usersvc.SelectItem, error) {
	defer mw.observe("user_select_list", time.Now())
	return mw.next.UserSelectList(ctx, a)
}

// ProxingMiddleware asks the user service whether the caller still exists
// before any task operation runs, and serves the assignee picker from the
// user service.
func ProxingMiddleware(isUserExists, selectList endpoint.Endpoint) Middleware {
	return func(next Service) Service {
		return proxingMiddleware{next, isUserExists, selectList}
	}
}

type proxingMiddleware struct {
	next         Service
	isUserExists endpoint.Endpoint
	selectList   endpoint.Endpoint
}

func (mw proxingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.View, error) {
	if err := mw.validate(ctx, a); err != nil {
		return nil, err
	}
	return mw.next.Tasks(ctx, a)
}

func (mw proxingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.View, error) {
	if err := mw.validate(ctx, a); err != nil {
		return tasksvc.View{}, err
	}
	return mw.next.Task(ctx, a, taskID)
}

func (mw proxingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (tasksvc.View, error) {
	if err := mw.validate(ctx, a); err != nil {
		return tasksvc.View{}, err
	}
	return mw.next.CreateTask(ctx, a, in)
}

func (mw proxingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.Input) (tasksvc.View, error) {
	if err := mw.validate(ctx, a); err != nil {
		return tasksvc.View{}, err
	}
	return mw.next.UpdateTask(ctx, a, taskID, in)
}

func (mw proxingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error {
	if err := mw.validate(ctx, a); err != nil {
		return err
	}
	return mw.next.DeleteTask(ctx, a, taskID)
}

func (mw proxingMiddleware) Dashboard(ctx context.Context, a tasksvc.Auth) (tasksvc.Dashboard, error) {
	if err := mw.validate(ctx, a); err != nil {
		return tasksvc.Dashboard{}, err
	}
	return mw.next.Dashboard(ctx, a)
}

func (mw proxingMiddleware) UserSelectList(ctx context.Context, a tasksvc.Auth) ([]usersvc.SelectItem, error) {
	if err := mw.validate(ctx, a); err != nil {
		return nil, err
	}

	response, err := mw.selectList(ctx, userendpoint.SelectListRequest{})
	if err != nil {
		return nil, err
	}

	resp := response.(userendpoint.SelectListResponse)
	return resp.Items, resp.Err
}

func (mw proxingMiddleware) validate(ctx context.Context, a tasksvc.Auth) error {
	if a.UserID == "" {
		return tasksvc.ErrAuthMissing
	}

	response, err := mw.isUserExists(ctx, userendpoint.IsExistsRequest{ID: a.UserID})
	if err != nil {
		return err
	}

	resp := response.(userendpoint.IsExistsResponse)
	if errors.Is(resp.Err, usersvc.ErrUserNotFound) {
		return fmt.Errorf("%w: %v", tasksvc.ErrAuthMissing, resp.Err)
	}
	return resp.Err
}

// NotifyingMiddleware publishes a TaskCreated event for every created task.
// Publishing happens in the background and failures are only logged.
func NotifyingMiddleware(p notifysvc.Publisher, timeout time.Duration, logger log.Logger) Middleware {
	return func(next Service) Service {
		return notifyingMiddleware{next, p, timeout, logger}
	}
}

type notifyingMiddleware struct {
	Service
	publisher notifysvc.Publisher
	timeout   time.Duration
	logger    log.Logger
}

func (mw notifyingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (tasksvc.View, error) {
	v, err := mw.Service.CreateTask(ctx, a, in)
	if err != nil {
		return v, err
	}

	scope := a.UserID
	if a.IsAdmin() {
		scope = notifysvc.ScopeAll
	}

	event, err := notifysvc.NewEvent(notifysvc.EventTaskCreated, scope, v)
	if err != nil {
		level.Error(mw.logger).Log("event", notifysvc.EventTaskCreated, "task_id", v.ID, "err", err)
		return v, nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mw.timeout)
		defer cancel()

		if err := mw.publisher.Publish(ctx, event); err != nil {
			level.Warn(mw.logger).Log("event", event.Name, "task_id", v.ID, "err", err)
		}
	}()

	return v, nil
}
