package usertransport

import (
	"context"
	"errors"
	"net/http"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/httpjson"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/ichigozero/taskdesk/usersvc/pkg/userendpoint"
)

// NewHTTPHandler serves registration and the caller's profile. guard is
// applied to every endpoint that needs an authenticated caller.
func NewHTTPHandler(endpoints userendpoint.Set, guard endpoint.Middleware, logger log.Logger) http.Handler {
	options := httpjson.ServerOptions(logger, err2code)
	encodeResponse := httpjson.NewResponseEncoder(httpjson.NewErrorEncoder(err2code))

	registerHandler := httptransport.NewServer(
		endpoints.RegisterEndpoint,
		decodeHTTPRegisterRequest,
		encodeResponse,
		options...,
	)

	profileHandler := httptransport.NewServer(
		guard(endpoints.ProfileEndpoint),
		decodeHTTPProfileRequest,
		encodeResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	changePasswordHandler := httptransport.NewServer(
		guard(httpjson.FailDecoded(endpoints.ChangePasswordEndpoint)),
		httpjson.DeferDecodeErrors(decodeHTTPChangePasswordRequest),
		encodeResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	r := mux.NewRouter()
	r.NotFoundHandler = httpjson.NotFound()

	r.Methods("POST").Path("/api/auth/register").Handler(registerHandler)
	r.Methods("GET").Path("/api/profile").Handler(profileHandler)
	r.Methods("PUT").Path("/api/profile/change-password").Handler(changePasswordHandler)

	return r
}

func err2code(err error) int {
	var verr *usersvc.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, usersvc.ErrInvalidArgument), errors.Is(err, httpjson.ErrMalformedBody):
		return http.StatusBadRequest
	case authsvc.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeHTTPRegisterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userendpoint.RegisterRequest
	err := httpjson.DecodeJSON(r, &req)
	return req, err
}

func decodeHTTPProfileRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return userendpoint.ProfileRequest{}, nil
}

func decodeHTTPChangePasswordRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userendpoint.ChangePasswordRequest
	err := httpjson.DecodeJSON(r, &req)
	return req, err
}
