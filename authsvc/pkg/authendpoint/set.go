package authendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authservice"
)

type Set struct {
	LoginEndpoint  endpoint.Endpoint
	LogoutEndpoint endpoint.Endpoint
}

// New wires the endpoints. Login attempts beyond what limiter allows for
// the calling client fail with ratelimit.ErrLimited.
func New(svc authservice.Service, limiter Limiter, logger log.Logger) Set {
	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		loginEndpoint = RateLimitMiddleware(limiter)(loginEndpoint)
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	var logoutEndpoint endpoint.Endpoint
	{
		logoutEndpoint = MakeLogoutEndpoint(svc)
		logoutEndpoint = LoggingMiddleware(log.With(logger, "method", "Logout"))(logoutEndpoint)
	}

	return Set{
		LoginEndpoint:  loginEndpoint,
		LogoutEndpoint: logoutEndpoint,
	}
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		session, err := s.Login(ctx, req.Email, req.Password)

		return LoginResponse{Session: session, Err: err}, nil
	}
}

func MakeLogoutEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claims, err := authsvc.ClaimsFromContext(ctx)
		if err != nil {
			return LogoutResponse{Err: err}, nil
		}

		_ = request.(LogoutRequest)
		err = s.Logout(ctx, claims.Id, time.Unix(claims.ExpiresAt, 0))
		if err != nil {
			return LogoutResponse{Err: err}, nil
		}

		return LogoutResponse{Message: "Logged out."}, nil
	}
}

var (
	_ endpoint.Failer = LoginResponse{}
	_ endpoint.Failer = LogoutResponse{}
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	authservice.Session
	Err error `json:"-"`
}

func (r LoginResponse) Failed() error { return r.Err }

type LogoutRequest struct{}

type LogoutResponse struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (r LogoutResponse) Failed() error { return r.Err }
