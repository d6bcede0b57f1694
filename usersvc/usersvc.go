package usersvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type RoleName string

const (
	RoleAdmin RoleName = "Admin"
	RoleUser  RoleName = "User"
)

func ParseRole(s string) (RoleName, error) {
	switch RoleName(s) {
	case RoleAdmin, RoleUser:
		return RoleName(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
}

type Role struct {
	Name RoleName `gorm:"primaryKey;size:32"`
}

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserName     string    `json:"userName" gorm:"uniqueIndex;size:256;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:256;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Roles        []Role    `json:"-" gorm:"many2many:user_roles;"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// PrimaryRole picks the role a session is issued for. Admin wins over User so
// the choice does not depend on the order the store returns roles in.
func (u User) PrimaryRole() (RoleName, bool) {
	var found bool
	for _, r := range u.Roles {
		if r.Name == RoleAdmin {
			return RoleAdmin, true
		}
		if r.Name == RoleUser {
			found = true
		}
	}
	if found {
		return RoleUser, true
	}
	return "", false
}

func (u User) HasRole(name RoleName) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Identity is the part of a user that goes into a session.
type Identity struct {
	ID       string
	UserName string
	Email    string
	Role     RoleName
}

type SelectItem struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUserName(ctx context.Context, username string) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	AddRole(ctx context.Context, id string, role RoleName) error
	EnsureRole(ctx context.Context, role RoleName) error
	Exists(ctx context.Context, id string) (bool, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	SelectList(ctx context.Context) ([]SelectItem, error)
}

// ValidationError carries one message per rule the input violated.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Messages() []string { return e.Errors }

// Unique user fields.
const (
	FieldUserName = "user_name"
	FieldEmail    = "email"
)

// DuplicateError reports a unique field another user already holds.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s is already taken", e.Field)
}

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
