package authtransport

import (
	"context"
	"errors"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
)

// NewAuthenticater rejects tokens whose id is in the revocation store.
func NewAuthenticater(c inmem.Client) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			claims, err := authsvc.ClaimsFromContext(ctx)
			if err != nil {
				return nil, err
			}

			err = c.Get(ctx, authsvc.RevokedKey(claims.Id))
			switch {
			case err == nil:
				return nil, authsvc.ErrTokenRevoked
			case !errors.Is(err, inmem.ErrKeyNotFound):
				return nil, err
			}

			return next(ctx, request)
		}
	}
}

// Guard parses and validates the bearer token and checks it has not been
// revoked. The claims are left in the context under kitjwt.JWTClaimsContextKey.
func Guard(secret []byte, factory kitjwt.ClaimsFactory, c inmem.Client) endpoint.Middleware {
	kf := func(token *stdjwt.Token) (interface{}, error) {
		return secret, nil
	}

	return endpoint.Chain(
		kitjwt.NewParser(kf, stdjwt.SigningMethodHS256, factory),
		NewAuthenticater(c),
	)
}
