package authtransport

import (
	"context"
	"errors"
	"net"
	"net/http"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/pkg/authendpoint"
	"github.com/ichigozero/taskdesk/httpjson"
	"github.com/ichigozero/taskdesk/usersvc"
)

func NewHTTPHandler(endpoints authendpoint.Set, guard endpoint.Middleware, logger log.Logger) http.Handler {
	options := httpjson.ServerOptions(logger, err2code)
	encodeResponse := httpjson.NewResponseEncoder(httpjson.NewErrorEncoder(err2code))

	loginHandler := httptransport.NewServer(
		endpoints.LoginEndpoint,
		decodeHTTPLoginRequest,
		encodeResponse,
		append(options, httptransport.ServerBefore(clientToContext))...,
	)

	logoutHandler := httptransport.NewServer(
		guard(endpoints.LogoutEndpoint),
		decodeHTTPLogoutRequest,
		encodeResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	r := mux.NewRouter()
	r.NotFoundHandler = httpjson.NotFound()

	r.Methods("POST").Path("/api/auth/login").Handler(loginHandler)
	r.Methods("POST").Path("/api/auth/logout").Handler(logoutHandler)

	return r
}

func err2code(err error) int {
	switch {
	case errors.Is(err, usersvc.ErrInvalidCredentials), authsvc.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authsvc.ErrInvalidArgument), errors.Is(err, httpjson.ErrMalformedBody):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// clientToContext keys login attempts by the peer address. Forwarding headers
// are ignored since any client can set them.
func clientToContext(ctx context.Context, r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return context.WithValue(ctx, authendpoint.ClientContextKey, host)
}

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.LoginRequest
	err := httpjson.DecodeJSON(r, &req)
	return req, err
}

func decodeHTTPLogoutRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return authendpoint.LogoutRequest{}, nil
}
