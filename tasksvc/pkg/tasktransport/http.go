package tasktransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/httpjson"
	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/ichigozero/taskdesk/tasksvc/pkg/taskendpoint"
)

// NewHTTPHandler serves the task and dashboard routes. Every route requires
// a caller accepted by guard.
func NewHTTPHandler(endpoints taskendpoint.Set, guard endpoint.Middleware, logger log.Logger) http.Handler {
	options := append(
		httpjson.ServerOptions(logger, err2code),
		httptransport.ServerBefore(kitjwt.HTTPToContext()),
	)
	encodeResponse := httpjson.NewResponseEncoder(httpjson.NewErrorEncoder(err2code))

	newServer := func(e endpoint.Endpoint, dec httptransport.DecodeRequestFunc) http.Handler {
		return httptransport.NewServer(
			guard(httpjson.FailDecoded(e)),
			httpjson.DeferDecodeErrors(dec),
			encodeResponse,
			options...,
		)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = httpjson.NotFound()

	// user-select-list must be matched before /api/task/{id}.
	r.Methods("GET").Path("/api/task/user-select-list").Handler(newServer(endpoints.UserSelectListEndpoint, decodeHTTPUserSelectListRequest))
	r.Methods("GET").Path("/api/task").Handler(newServer(endpoints.TasksEndpoint, decodeHTTPTasksRequest))
	r.Methods("POST").Path("/api/task").Handler(newServer(endpoints.CreateTaskEndpoint, decodeHTTPCreateTaskRequest))
	r.Methods("GET").Path("/api/task/{id}").Handler(newServer(endpoints.TaskEndpoint, decodeHTTPTaskRequest))
	r.Methods("PUT").Path("/api/task/{id}").Handler(newServer(endpoints.UpdateTaskEndpoint, decodeHTTPUpdateTaskRequest))
	r.Methods("DELETE").Path("/api/task/{id}").Handler(newServer(endpoints.DeleteTaskEndpoint, decodeHTTPDeleteTaskRequest))
	r.Methods("GET").Path("/api/dashboard").Handler(newServer(endpoints.DashboardEndpoint, decodeHTTPDashboardRequest))

	return r
}

func err2code(err error) int {
	var (
		verr *tasksvc.ValidationError
		nf   *tasksvc.NotFoundError
	)
	switch {
	case errors.As(err, &verr),
		errors.Is(err, tasksvc.ErrInvalidArgument),
		errors.Is(err, tasksvc.ErrAssigneeNotFound),
		errors.Is(err, httpjson.ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, tasksvc.ErrAuthMissing), authsvc.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, tasksvc.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, tasksvc.ErrVersionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func taskID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: task id %q", tasksvc.ErrInvalidArgument, mux.Vars(r)["id"])
	}
	return id, nil
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return taskendpoint.TasksRequest{}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{TaskID: id}, nil
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	err := httpjson.DecodeJSON(r, &req)
	return req, err
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}

	var req taskendpoint.UpdateTaskRequest
	if err := httpjson.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.TaskID = id

	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{TaskID: id}, nil
}

func decodeHTTPDashboardRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return taskendpoint.DashboardRequest{}, nil
}

func decodeHTTPUserSelectListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return taskendpoint.UserSelectListRequest{}, nil
}
