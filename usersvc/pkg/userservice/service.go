package userservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/twinj/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, username, email, password string) (usersvc.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (usersvc.Identity, error)
	Profile(ctx context.Context, id string) (usersvc.User, error)
	ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error
	IsExists(ctx context.Context, id string) (bool, error)
	SelectList(ctx context.Context) ([]usersvc.SelectItem, error)
}

func New(u usersvc.UserRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(u, bcrypt.DefaultCost)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	users    usersvc.UserRepository
	hashCost int
}

func NewBasicService(u usersvc.UserRepository, hashCost int) Service {
	return basicService{users: u, hashCost: hashCost}
}

var newUserID = func() string { return uuid.NewV4().String() }

func (s basicService) Register(ctx context.Context, username, email, password string) (usersvc.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	var msgs []string
	msgs = append(msgs, usersvc.ValidateUserName(username)...)
	msgs = append(msgs, usersvc.ValidateEmail(email)...)
	msgs = append(msgs, usersvc.ValidatePassword(password)...)

	if username != "" {
		if _, err := s.users.FindByUserName(ctx, username); err == nil {
			msgs = append(msgs, taken(usersvc.FieldUserName, username, email))
		} else if !errors.Is(err, usersvc.ErrUserNotFound) {
			return usersvc.User{}, err
		}
	}
	if email != "" {
		if _, err := s.users.FindByEmail(ctx, email); err == nil {
			msgs = append(msgs, taken(usersvc.FieldEmail, username, email))
		} else if !errors.Is(err, usersvc.ErrUserNotFound) {
			return usersvc.User{}, err
		}
	}
	if len(msgs) > 0 {
		return usersvc.User{}, &usersvc.ValidationError{Errors: msgs}
	}

	if err := s.users.EnsureRole(ctx, usersvc.RoleUser); err != nil {
		return usersvc.User{}, fmt.Errorf("ensure role %s: %w", usersvc.RoleUser, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return usersvc.User{}, err
	}

	user := usersvc.User{
		ID:           newUserID(),
		UserName:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []usersvc.Role{{Name: usersvc.RoleUser}},
	}
	if err := s.users.Create(ctx, &user); err != nil {
		// Another registration took the name between the checks and the insert.
		var dup *usersvc.DuplicateError
		if errors.As(err, &dup) {
			return usersvc.User{}, &usersvc.ValidationError{Errors: []string{taken(dup.Field, username, email)}}
		}
		return usersvc.User{}, err
	}
	return user, nil
}

func taken(field, username, email string) string {
	if field == usersvc.FieldEmail {
		return fmt.Sprintf("Email '%s' is already taken.", email)
	}
	return fmt.Sprintf("Username '%s' is already taken.", username)
}

func (s basicService) VerifyCredentials(ctx context.Context, email, password string) (usersvc.Identity, error) {
	if email == "" || password == "" {
		return usersvc.Identity{}, usersvc.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, usersvc.ErrUserNotFound) {
		return usersvc.Identity{}, usersvc.ErrInvalidCredentials
	}
	if err != nil {
		return usersvc.Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return usersvc.Identity{}, usersvc.ErrInvalidCredentials
	}

	role, ok := user.PrimaryRole()
	if !ok {
		role = usersvc.RoleUser
	}

	return usersvc.Identity{
		ID:       user.ID,
		UserName: user.UserName,
		Email:    user.Email,
		Role:     role,
	}, nil
}

func (s basicService) Profile(ctx context.Context, id string) (usersvc.User, error) {
	if id == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}
	return s.users.FindByID(ctx, id)
}

func (s basicService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	if id == "" {
		return usersvc.ErrInvalidArgument
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return &usersvc.ValidationError{Errors: []string{"Incorrect password."}}
	}
	if msgs := usersvc.ValidatePassword(newPassword); len(msgs) > 0 {
		return &usersvc.ValidationError{Errors: msgs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, id, string(hash))
}

func (s basicService) IsExists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, usersvc.ErrInvalidArgument
	}

	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, usersvc.ErrUserNotFound
	}
	return true, nil
}

func (s basicService) SelectList(ctx context.Context) ([]usersvc.SelectItem, error) {
	return s.users.SelectList(ctx)
}
