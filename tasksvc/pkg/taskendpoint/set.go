package taskendpoint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/ichigozero/taskdesk/tasksvc/pkg/taskservice"
	"github.com/ichigozero/taskdesk/usersvc"
)

type Set struct {
	TasksEndpoint          endpoint.Endpoint
	TaskEndpoint           endpoint.Endpoint
	CreateTaskEndpoint     endpoint.Endpoint
	UpdateTaskEndpoint     endpoint.Endpoint
	DeleteTaskEndpoint     endpoint.Endpoint
	DashboardEndpoint      endpoint.Endpoint
	UserSelectListEndpoint endpoint.Endpoint
}

func New(svc taskservice.Service, logger log.Logger) Set {
	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = MakeTasksEndpoint(svc)
		tasksEndpoint = LoggingMiddleware(log.With(logger, "method", "Tasks"))(tasksEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = MakeTaskEndpoint(svc)
		taskEndpoint = LoggingMiddleware(log.With(logger, "method", "Task"))(taskEndpoint)
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = MakeCreateTaskEndpoint(svc)
		createTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateTask"))(createTaskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = MakeUpdateTaskEndpoint(svc)
		updateTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateTask"))(updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = MakeDeleteTaskEndpoint(svc)
		deleteTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteTask"))(deleteTaskEndpoint)
	}

	var dashboardEndpoint endpoint.Endpoint
	{
		dashboardEndpoint = MakeDashboardEndpoint(svc)
		dashboardEndpoint = LoggingMiddleware(log.With(logger, "method", "Dashboard"))(dashboardEndpoint)
	}

	var userSelectListEndpoint endpoint.Endpoint
	{
		userSelectListEndpoint = MakeUserSelectListEndpoint(svc)
		userSelectListEndpoint = LoggingMiddleware(log.With(logger, "method", "UserSelectList"))(userSelectListEndpoint)
	}

	return Set{
		TasksEndpoint:          tasksEndpoint,
		TaskEndpoint:           taskEndpoint,
		CreateTaskEndpoint:     createTaskEndpoint,
		UpdateTaskEndpoint:     updateTaskEndpoint,
		DeleteTaskEndpoint:     deleteTaskEndpoint,
		DashboardEndpoint:      dashboardEndpoint,
		UserSelectListEndpoint: userSelectListEndpoint,
	}
}

// auth builds the caller from the claims a kitjwt parser left in ctx.
func auth(ctx context.Context) (tasksvc.Auth, error) {
	claims, err := authsvc.ClaimsFromContext(ctx)
	if err != nil {
		return tasksvc.Auth{}, err
	}
	return tasksvc.Auth{
		TokenID: claims.Id,
		UserID:  claims.Subject,
		Role:    claims.Role,
	}, nil
}

func MakeTasksEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return TasksResponse{Err: err}, nil
		}

		_ = request.(TasksRequest)
		tasks, err := s.Tasks(ctx, a)

		return TasksResponse{Tasks: tasks, Err: err}, nil
	}
}

func MakeTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return TaskResponse{Err: err}, nil
		}

		req := request.(TaskRequest)
		task, err := s.Task(ctx, a, req.TaskID)

		return TaskResponse{View: task, Err: err}, nil
	}
}

func MakeCreateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return CreateTaskResponse{Err: err}, nil
		}

		req := request.(CreateTaskRequest)
		task, err := s.CreateTask(ctx, a, req.Input)

		return CreateTaskResponse{View: task, Err: err}, nil
	}
}

func MakeUpdateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return UpdateTaskResponse{Err: err}, nil
		}

		req := request.(UpdateTaskRequest)
		task, err := s.UpdateTask(ctx, a, req.TaskID, req.Input)

		return UpdateTaskResponse{View: task, Err: err}, nil
	}
}

func MakeDeleteTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return DeleteTaskResponse{Err: err}, nil
		}

		req := request.(DeleteTaskRequest)
		err = s.DeleteTask(ctx, a, req.TaskID)

		return DeleteTaskResponse{Err: err}, nil
	}
}

func MakeDashboardEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return DashboardResponse{Err: err}, nil
		}

		_ = request.(DashboardRequest)
		d, err := s.Dashboard(ctx, a)

		return DashboardResponse{Dashboard: d, Err: err}, nil
	}
}

func MakeUserSelectListEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		a, err := auth(ctx)
		if err != nil {
			return UserSelectListResponse{Err: err}, nil
		}

		_ = request.(UserSelectListRequest)
		items, err := s.UserSelectList(ctx, a)

		return UserSelectListResponse{Items: items, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = TasksResponse{}
	_ endpoint.Failer = TaskResponse{}
	_ endpoint.Failer = CreateTaskResponse{}
	_ endpoint.Failer = UpdateTaskResponse{}
	_ endpoint.Failer = DeleteTaskResponse{}
	_ endpoint.Failer = DashboardResponse{}
	_ endpoint.Failer = UserSelectListResponse{}
)

type TasksRequest struct{}

type TasksResponse struct {
	Tasks []tasksvc.View
	Err   error
}

func (r TasksResponse) Failed() error { return r.Err }

func (r TasksResponse) MarshalJSON() ([]byte, error) {
	if r.Tasks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Tasks)
}

type TaskRequest struct {
	TaskID uint64
}

type TaskResponse struct {
	tasksvc.View
	Err error `json:"-"`
}

func (r TaskResponse) Failed() error { return r.Err }

type CreateTaskRequest struct {
	tasksvc.Input
}

type CreateTaskResponse struct {
	tasksvc.View
	Err error `json:"-"`
}

func (r CreateTaskResponse) Failed() error { return r.Err }

func (r CreateTaskResponse) StatusCode() int { return http.StatusCreated }

type UpdateTaskRequest struct {
	TaskID uint64 `json:"-"`
	tasksvc.Input
}

type UpdateTaskResponse struct {
	tasksvc.View
	Err error `json:"-"`
}

func (r UpdateTaskResponse) Failed() error { return r.Err }

type DeleteTaskRequest struct {
	TaskID uint64
}

type DeleteTaskResponse struct {
	Err error `json:"-"`
}

func (r DeleteTaskResponse) Failed() error { return r.Err }

func (r DeleteTaskResponse) StatusCode() int { return http.StatusNoContent }

type DashboardRequest struct{}

type DashboardResponse struct {
	tasksvc.Dashboard
	Err error `json:"-"`
}

func (r DashboardResponse) Failed() error { return r.Err }

type UserSelectListRequest struct{}

type UserSelectListResponse struct {
	Items []usersvc.SelectItem
	Err   error
}

func (r UserSelectListResponse) Failed() error { return r.Err }

func (r UserSelectListResponse) MarshalJSON() ([]byte, error) {
	if r.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Items)
}
