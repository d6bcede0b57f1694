package userservice

import (
	"context"
	"errors"

	"github.com/ichigozero/taskdesk/usersvc"
	"golang.org/x/crypto/bcrypt"
)

type Admin struct {
	UserName string
	Email    string
	Password string
}

// Seed makes sure both roles exist and that the configured admin account is
// present and holds the Admin role. Running it again changes nothing.
func Seed(ctx context.Context, users usersvc.UserRepository, admin Admin) error {
	for _, role := range []usersvc.RoleName{usersvc.RoleAdmin, usersvc.RoleUser} {
		if err := users.EnsureRole(ctx, role); err != nil {
			return err
		}
	}

	user, err := users.FindByEmail(ctx, admin.Email)
	switch {
	case err == nil:
		if user.HasRole(usersvc.RoleAdmin) {
			return nil
		}
		return users.AddRole(ctx, user.ID, usersvc.RoleAdmin)
	case !errors.Is(err, usersvc.ErrUserNotFound):
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return users.Create(ctx, &usersvc.User{
		ID:           newUserID(),
		UserName:     admin.UserName,
		Email:        admin.Email,
		PasswordHash: string(hash),
		Roles:        []usersvc.Role{{Name: usersvc.RoleAdmin}},
	})
}
