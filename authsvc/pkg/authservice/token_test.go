package authservice

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/ichigozero/taskdesk/authsvc"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, hash, secret, issuer, audience string) (*authsvc.Claims, error) {
	t.Helper()
	claims := authsvc.NewClaimsFactory(issuer, audience)().(*authsvc.Claims)
	_, err := jwt.ParseWithClaims(hash, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	return claims, err
}

func TestTokenizerGenerate(t *testing.T) {
	fixed := "5d1f3f2c-8d43-4a87-9f3e-6c1b9b7f0e11"
	restore := newTokenID
	newTokenID = func() string { return fixed }
	defer func() { newTokenID = restore }()

	tk := NewTokenizer([]byte("secret"), "taskdesk", "taskdesk-web", time.Hour).(*tokenizer)
	now := time.Now().Truncate(time.Second)
	tk.now = func() time.Time { return now }

	identity := usersvc.Identity{ID: "u1", UserName: "jane", Email: "jane@example.com", Role: usersvc.RoleAdmin}
	at, err := tk.Generate(identity)
	require.NoError(t, err)
	assert.Equal(t, fixed, at.ID)
	assert.Equal(t, time.Hour, at.ExpiresIn)

	again, err := tk.Generate(identity)
	require.NoError(t, err)
	assert.Equal(t, at.Hash, again.Hash)

	claims, err := parse(t, at.Hash, "secret", "taskdesk", "taskdesk-web")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "jane", claims.UserName)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, usersvc.RoleAdmin, claims.Role)
	assert.Equal(t, fixed, claims.Id)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)
	assert.Equal(t, now.Unix(), claims.IssuedAt)
}

func TestTokenizerRejectsForeignTokens(t *testing.T) {
	tk := NewTokenizer([]byte("secret"), "taskdesk", "taskdesk-web", time.Hour)
	at, err := tk.Generate(usersvc.Identity{ID: "u1", Role: usersvc.RoleUser})
	require.NoError(t, err)

	_, err = parse(t, at.Hash, "other-secret", "taskdesk", "taskdesk-web")
	assert.Error(t, err)

	_, err = parse(t, at.Hash, "secret", "someone-else", "taskdesk-web")
	assert.Error(t, err)

	_, err = parse(t, at.Hash, "secret", "taskdesk", "another-app")
	assert.Error(t, err)
}

func TestTokenizerExpiry(t *testing.T) {
	tk := NewTokenizer([]byte("secret"), "taskdesk", "taskdesk-web", time.Hour).(*tokenizer)
	tk.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	at, err := tk.Generate(usersvc.Identity{ID: "u1", Role: usersvc.RoleUser})
	require.NoError(t, err)

	_, err = parse(t, at.Hash, "secret", "taskdesk", "taskdesk-web")
	var verr *jwt.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotZero(t, verr.Errors&jwt.ValidationErrorExpired)
}

func TestTokenizerRoleMissing(t *testing.T) {
	tk := NewTokenizer([]byte("secret"), "taskdesk", "taskdesk-web", time.Hour)
	_, err := tk.Generate(usersvc.Identity{ID: "u1"})
	assert.ErrorIs(t, err, authsvc.ErrRoleMissing)
}
