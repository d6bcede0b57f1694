package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authendpoint"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authservice"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authtransport"
	"github.com/ichigozero/taskdesk/config"
	"github.com/ichigozero/taskdesk/httpjson"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/notifysvc/hub"
	"github.com/ichigozero/taskdesk/notifysvc/pkg/notifytransport"
	taskgorm "github.com/ichigozero/taskdesk/tasksvc/db/gorm"
	"github.com/ichigozero/taskdesk/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskdesk/tasksvc/pkg/taskservice"
	"github.com/ichigozero/taskdesk/tasksvc/pkg/tasktransport"
	usergorm "github.com/ichigozero/taskdesk/usersvc/db/gorm"
	"github.com/ichigozero/taskdesk/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskdesk/usersvc/pkg/userservice"
	"github.com/ichigozero/taskdesk/usersvc/pkg/usertransport"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	libgorm "gorm.io/gorm"
)

const (
	publishTimeout = 5 * time.Second
	loginIdle      = 10 * time.Minute
)

type instruments struct {
	userCount   metrics.Counter
	userLatency metrics.Histogram
	authCount   metrics.Counter
	authLatency metrics.Histogram
	taskCount   metrics.Counter
	taskLatency metrics.Histogram

	subscribers metrics.Gauge
	dropped     metrics.Counter
}

func newInstruments() instruments {
	fieldKeys := []string{"method"}

	counter := func(subsystem string) metrics.Counter {
		return kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "api",
			Subsystem: subsystem,
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, fieldKeys)
	}
	summary := func(subsystem string) metrics.Histogram {
		return kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "api",
			Subsystem: subsystem,
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, fieldKeys)
	}

	return instruments{
		userCount:   counter("user_service"),
		userLatency: summary("user_service"),
		authCount:   counter("auth_service"),
		authLatency: summary("auth_service"),
		taskCount:   counter("task_service"),
		taskLatency: summary("task_service"),
		subscribers: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: "api",
			Subsystem: "task_hub",
			Name:      "subscribers",
			Help:      "Number of connected notification subscribers.",
		}, nil),
		dropped: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "api",
			Subsystem: "task_hub",
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a subscriber was too slow.",
		}, nil),
	}
}

type app struct {
	db          *libgorm.DB
	jwt         config.JWTConfig
	login       config.LoginConfig
	tokens      inmem.Client
	hub         *hub.Hub
	publisher   notifysvc.Publisher
	instruments instruments
	logger      log.Logger
}

// handler wires the services together and mounts every route under one
// router.
func (a app) handler() http.Handler {
	secret := []byte(a.jwt.Secret)
	guard := authtransport.Guard(secret, authsvc.NewClaimsFactory(a.jwt.Issuer, a.jwt.Audience), a.tokens)

	userRepository := usergorm.NewUserRepository(a.db)
	taskRepository := taskgorm.NewTaskRepository(a.db)

	var userService userservice.Service
	{
		userService = userservice.New(userRepository, a.logger)
		userService = userservice.InstrumentingMiddleware(a.instruments.userCount, a.instruments.userLatency)(userService)
	}
	userEndpoints := userendpoint.New(userService, a.logger)

	var authService authservice.Service
	{
		tokenizer := authservice.NewTokenizer(secret, a.jwt.Issuer, a.jwt.Audience, a.jwt.TTL)
		authService = authservice.New(tokenizer, a.tokens, a.logger)
		authService = authservice.InstrumentingMiddleware(a.instruments.authCount, a.instruments.authLatency)(authService)
		authService = authservice.ProxingMiddleware(userEndpoints.VerifyCredentialsEndpoint)(authService)
	}
	limiter := authendpoint.NewClientLimiter(rate.Limit(a.login.Rate), a.login.Burst, loginIdle)
	authEndpoints := authendpoint.New(authService, limiter, a.logger)

	var taskService taskservice.Service
	{
		taskService = taskservice.New(taskRepository, userRepository, a.logger)
		taskService = taskservice.InstrumentingMiddleware(a.instruments.taskCount, a.instruments.taskLatency)(taskService)
		taskService = taskservice.ProxingMiddleware(userEndpoints.IsExistsEndpoint, userEndpoints.SelectListEndpoint)(taskService)
		taskService = taskservice.NotifyingMiddleware(a.publisher, publishTimeout, a.logger)(taskService)
	}
	taskEndpoints := taskendpoint.New(taskService, a.logger)

	var (
		users = usertransport.NewHTTPHandler(userEndpoints, guard, a.logger)
		auth  = authtransport.NewHTTPHandler(authEndpoints, guard, a.logger)
		tasks = tasktransport.NewHTTPHandler(taskEndpoints, guard, a.logger)
		ws    = notifytransport.NewWebSocketHandler(a.hub, guard, a.logger)
	)

	r := mux.NewRouter()
	r.NotFoundHandler = httpjson.NotFound()

	r.Path("/api/auth/register").Handler(users)
	r.PathPrefix("/api/auth/").Handler(auth)
	r.PathPrefix("/api/profile").Handler(users)
	r.PathPrefix("/api/task").Handler(tasks)
	r.Path("/api/dashboard").Handler(tasks)
	r.Path("/hubs/tasks").Handler(ws)
	r.Methods("GET").Path("/healthz").Handler(a.health())
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	return httpjson.Recoverer(a.logger)(r)
}

func (a app) health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := ping(r.Context(), a.db); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
}

func ping(ctx context.Context, db *libgorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func seed(ctx context.Context, db *libgorm.DB, admin config.AdminConfig) error {
	return userservice.Seed(ctx, usergorm.NewUserRepository(db), userservice.Admin{
		UserName: admin.UserName,
		Email:    admin.Email,
		Password: admin.Password,
	})
}
