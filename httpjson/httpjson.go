// Package httpjson holds the JSON encoding shared by the HTTP transports:
// the error envelope, response encoding, access logging and panic recovery.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	Details    string   `json:"details,omitempty"`
}

// Messager is implemented by errors that carry one message per violated rule.
type Messager interface {
	error
	Messages() []string
}

// NewErrorEncoder returns an error encoder writing the envelope with the
// status code chosen by codeOf.
func NewErrorEncoder(codeOf func(error) int) httptransport.ErrorEncoder {
	return func(_ context.Context, err error, w http.ResponseWriter) {
		WriteError(w, codeOf(err), err)
	}
}

func WriteError(w http.ResponseWriter, code int, err error) {
	resp := ErrorResponse{StatusCode: code, Message: message(code, err)}

	var m Messager
	if errors.As(err, &m) {
		resp.Message = "One or more validation errors occurred."
		resp.Errors = m.Messages()
	}

	write(w, code, resp)
}

func message(code int, err error) string {
	if code >= http.StatusInternalServerError || err == nil {
		return http.StatusText(code)
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// NewResponseEncoder encodes endpoint.Failer errors with enc and everything
// else as JSON, honouring httptransport.StatusCoder.
func NewResponseEncoder(enc httptransport.ErrorEncoder) httptransport.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
			enc(ctx, f.Failed(), w)
			return nil
		}
		return httptransport.EncodeJSONResponse(ctx, w, response)
	}
}

// ServerOptions are the options every HTTP server in the gateway shares.
func ServerOptions(logger log.Logger, codeOf func(error) int) []httptransport.ServerOption {
	return []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(NewErrorEncoder(codeOf)),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(level.Debug(logger))),
		httptransport.ServerFinalizer(accessLog(logger)),
	}
}

func accessLog(logger log.Logger) httptransport.ServerFinalizerFunc {
	return func(ctx context.Context, code int, r *http.Request) {
		size, _ := ctx.Value(httptransport.ContextKeyResponseSize).(int64)
		logger.Log(
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"size", size,
		)
	}
}

// DecodeJSON decodes a request body into v, reporting malformed input as
// ErrMalformedBody.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

var ErrMalformedBody = errors.New("malformed request body")

type decodeFailure struct{ err error }

// DeferDecodeErrors hands a decoding failure of dec to the endpoint chain
// instead of failing right away, so a guard placed in front of
// FailDecoded answers unauthenticated requests before the input is judged.
func DeferDecodeErrors(dec httptransport.DecodeRequestFunc) httptransport.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		request, err := dec(ctx, r)
		if err != nil {
			return decodeFailure{err}, nil
		}
		return request, nil
	}
}

// FailDecoded returns the error recorded by DeferDecodeErrors.
func FailDecoded(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		if f, ok := request.(decodeFailure); ok {
			return nil, f.err
		}
		return next(ctx, request)
	}
}

// NotFound writes the envelope for unmatched routes.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusNotFound, ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path),
		})
	})
}

// Recoverer turns a panic in next into a 500 envelope and logs it.
func Recoverer(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				level.Error(logger).Log("method", r.Method, "path", r.URL.Path, "panic", rec)
				write(w, http.StatusInternalServerError, ErrorResponse{
					StatusCode: http.StatusInternalServerError,
					Message:    http.StatusText(http.StatusInternalServerError),
					Details:    strings.TrimSpace(fmt.Sprint(rec)),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func write(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
