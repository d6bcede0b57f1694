package authsvc

import (
	"context"
	"errors"

	"github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/ichigozero/taskdesk/usersvc"
)

// Claims is the payload of a session token.
type Claims struct {
	UserName string           `json:"unique_name"`
	Email    string           `json:"email"`
	Role     usersvc.RoleName `json:"role"`
	jwt.StandardClaims

	issuer   string
	audience string
}

var _ jwt.Claims = (*Claims)(nil)

// Valid checks expiry, subject and role, and the issuer and audience the
// claims were created to expect.
func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.ExpiresAt == 0 || c.Subject == "" || c.Id == "" {
		return ErrClaimsInvalid
	}
	if c.issuer != "" && !c.VerifyIssuer(c.issuer, true) {
		return ErrClaimsInvalid
	}
	if c.audience != "" && !c.VerifyAudience(c.audience, true) {
		return ErrClaimsInvalid
	}
	if _, err := usersvc.ParseRole(string(c.Role)); err != nil {
		return ErrRoleMissing
	}
	return nil
}

// NewClaimsFactory returns a kitjwt.ClaimsFactory whose claims only validate
// for the given issuer and audience.
func NewClaimsFactory(issuer, audience string) kitjwt.ClaimsFactory {
	return func() jwt.Claims {
		return &Claims{issuer: issuer, audience: audience}
	}
}

// ClaimsFromContext returns the claims a kitjwt parser put into ctx.
func ClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(kitjwt.JWTClaimsContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrClaimsMissing
	}
	return claims, nil
}

// IsUnauthorized reports whether err means the caller presented no usable
// credentials.
func IsUnauthorized(err error) bool {
	for _, target := range []error{
		kitjwt.ErrTokenContextMissing,
		kitjwt.ErrTokenExpired,
		kitjwt.ErrTokenInvalid,
		kitjwt.ErrTokenMalformed,
		kitjwt.ErrTokenNotActive,
		kitjwt.ErrUnexpectedSigningMethod,
		ErrClaimsMissing,
		ErrClaimsInvalid,
		ErrRoleMissing,
		ErrTokenRevoked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type contextKey string

const IdentityContextKey contextKey = "Identity"

// RevokedKey is the revocation store key for a token id.
func RevokedKey(tokenID string) string {
	return "revoked/" + tokenID
}

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrIdentityContextMissing = errors.New("identity was not passed through the context")
	ErrClaimsMissing          = errors.New("JWT claims was not passed through the context")
	ErrClaimsInvalid          = errors.New("JWT claims was invalid")
	ErrRoleMissing            = errors.New("role claim is missing")
	ErrTokenRevoked           = errors.New("token has been revoked")
)
