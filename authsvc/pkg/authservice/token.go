package authservice

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/twinj/uuid"
)

type AccessToken struct {
	ID        string
	Hash      string
	ExpiresIn time.Duration
}

type Tokenizer interface {
	Generate(identity usersvc.Identity) (*AccessToken, error)
}

type tokenizer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenizer(secret []byte, issuer, audience string, ttl time.Duration) Tokenizer {
	return &tokenizer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

var newTokenID = func() string { return uuid.NewV4().String() }

func (t *tokenizer) Generate(identity usersvc.Identity) (*AccessToken, error) {
	if identity.Role == "" {
		return nil, authsvc.ErrRoleMissing
	}

	id := newTokenID()
	now := t.now()

	claims := authsvc.Claims{
		UserName: identity.UserName,
		Email:    identity.Email,
		Role:     identity.Role,
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Subject:   identity.ID,
			Issuer:    t.issuer,
			Audience:  t.audience,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(t.ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	hash, err := token.SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	return &AccessToken{ID: id, Hash: hash, ExpiresIn: t.ttl}, nil
}
