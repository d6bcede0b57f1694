package authservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
	"github.com/ichigozero/taskdesk/usersvc"
)

type Session struct {
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expiresIn"`
	Role      usersvc.RoleName `json:"role"`
}

type Service interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
}

func New(t Tokenizer, c inmem.Client, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t, c)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tokenizer Tokenizer
	client    inmem.Client
}

func NewBasicService(t Tokenizer, c inmem.Client) Service {
	return &basicService{tokenizer: t, client: c}
}

// Login issues a session for the identity that ProxingMiddleware resolved
// from the credentials.
func (s *basicService) Login(ctx context.Context, _, _ string) (Session, error) {
	identity, ok := ctx.Value(authsvc.IdentityContextKey).(usersvc.Identity)
	if !ok {
		return Session{}, authsvc.ErrIdentityContextMissing
	}
	if identity.Role == "" {
		identity.Role = usersvc.RoleUser
	}

	at, err := s.tokenizer.Generate(identity)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     at.Hash,
		ExpiresIn: int64(at.ExpiresIn / time.Second),
		Role:      identity.Role,
	}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *basicService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return authsvc.ErrInvalidArgument
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	return s.client.Put(ctx, authsvc.RevokedKey(tokenID), []byte(expiresAt.UTC().Format(time.RFC3339)), ttl)
}
