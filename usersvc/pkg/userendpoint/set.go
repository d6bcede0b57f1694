package userendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/ichigozero/taskdesk/usersvc/pkg/userservice"
)

type Set struct {
	RegisterEndpoint          endpoint.Endpoint
	VerifyCredentialsEndpoint endpoint.Endpoint
	ProfileEndpoint           endpoint.Endpoint
	ChangePasswordEndpoint    endpoint.Endpoint
	IsExistsEndpoint          endpoint.Endpoint
	SelectListEndpoint        endpoint.Endpoint
}

func New(svc userservice.Service, logger log.Logger) Set {
	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = MakeRegisterEndpoint(svc)
		registerEndpoint = LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}

	var verifyCredentialsEndpoint endpoint.Endpoint
	{
		verifyCredentialsEndpoint = MakeVerifyCredentialsEndpoint(svc)
		verifyCredentialsEndpoint = LoggingMiddleware(log.With(logger, "method", "VerifyCredentials"))(verifyCredentialsEndpoint)
	}

	var profileEndpoint endpoint.Endpoint
	{
		profileEndpoint = MakeProfileEndpoint(svc)
		profileEndpoint = LoggingMiddleware(log.With(logger, "method", "Profile"))(profileEndpoint)
	}

	var changePasswordEndpoint endpoint.Endpoint
	{
		changePasswordEndpoint = MakeChangePasswordEndpoint(svc)
		changePasswordEndpoint = LoggingMiddleware(log.With(logger, "method", "ChangePassword"))(changePasswordEndpoint)
	}

	var isExistsEndpoint endpoint.Endpoint
	{
		isExistsEndpoint = MakeIsExistsEndpoint(svc)
		isExistsEndpoint = LoggingMiddleware(log.With(logger, "method", "IsExists"))(isExistsEndpoint)
	}

	var selectListEndpoint endpoint.Endpoint
	{
		selectListEndpoint = MakeSelectListEndpoint(svc)
		selectListEndpoint = LoggingMiddleware(log.With(logger, "method", "SelectList"))(selectListEndpoint)
	}

	return Set{
		RegisterEndpoint:          registerEndpoint,
		VerifyCredentialsEndpoint: verifyCredentialsEndpoint,
		ProfileEndpoint:           profileEndpoint,
		ChangePasswordEndpoint:    changePasswordEndpoint,
		IsExistsEndpoint:          isExistsEndpoint,
		SelectListEndpoint:        selectListEndpoint,
	}
}

func MakeRegisterEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(RegisterRequest)
		u, err := s.Register(ctx, req.UserName, req.Email, req.Password)
		if err != nil {
			return RegisterResponse{Err: err}, nil
		}
		return RegisterResponse{
			Message: "User registered successfully.",
			User:    RegisteredUser{UserName: u.UserName, Email: u.Email},
		}, nil
	}
}

func MakeVerifyCredentialsEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(VerifyCredentialsRequest)
		identity, err := s.VerifyCredentials(ctx, req.Email, req.Password)
		return VerifyCredentialsResponse{Identity: identity, Err: err}, nil
	}
}

func MakeProfileEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claims, err := authsvc.ClaimsFromContext(ctx)
		if err != nil {
			return ProfileResponse{Err: err}, nil
		}

		_ = request.(ProfileRequest)
		u, err := s.Profile(ctx, claims.Subject)

		return ProfileResponse{UserName: u.UserName, Email: u.Email, Err: err}, nil
	}
}

func MakeChangePasswordEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claims, err := authsvc.ClaimsFromContext(ctx)
		if err != nil {
			return ChangePasswordResponse{Err: err}, nil
		}

		req := request.(ChangePasswordRequest)
		err = s.ChangePassword(ctx, claims.Subject, req.CurrentPassword, req.NewPassword)
		if err != nil {
			return ChangePasswordResponse{Err: err}, nil
		}

		return ChangePasswordResponse{Message: "Password changed successfully."}, nil
	}
}

func MakeIsExistsEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(IsExistsRequest)
		v, err := s.IsExists(ctx, req.ID)
		return IsExistsResponse{V: v, Err: err}, nil
	}
}

func MakeSelectListEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		_ = request.(SelectListRequest)
		items, err := s.SelectList(ctx)
		return SelectListResponse{Items: items, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = RegisterResponse{}
	_ endpoint.Failer = VerifyCredentialsResponse{}
	_ endpoint.Failer = ProfileResponse{}
	_ endpoint.Failer = ChangePasswordResponse{}
	_ endpoint.Failer = IsExistsResponse{}
	_ endpoint.Failer = SelectListResponse{}
)

type RegisterRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisteredUser struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
}

type RegisterResponse struct {
	Message string         `json:"message"`
	User    RegisteredUser `json:"user"`
	Err     error          `json:"-"`
}

func (r RegisterResponse) Failed() error { return r.Err }

type VerifyCredentialsRequest struct {
	Email    string
	Password string
}

type VerifyCredentialsResponse struct {
	Identity usersvc.Identity
	Err      error
}

func (r VerifyCredentialsResponse) Failed() error { return r.Err }

type ProfileRequest struct{}

type ProfileResponse struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Err      error  `json:"-"`
}

func (r ProfileResponse) Failed() error { return r.Err }

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ChangePasswordResponse struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (r ChangePasswordResponse) Failed() error { return r.Err }

type IsExistsRequest struct {
	ID string
}

type IsExistsResponse struct {
	V   bool
	Err error
}

func (r IsExistsResponse) Failed() error { return r.Err }

type SelectListRequest struct{}

type SelectListResponse struct {
	Items []usersvc.SelectItem
	Err   error
}

func (r SelectListResponse) Failed() error { return r.Err }
