package gorm

import (
	"context"
	"errors"
	"strings"

	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/jackc/pgconn"
	"github.com/mattn/go-sqlite3"
	libgorm "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *libgorm.DB
}

func NewUserRepository(db *libgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

// Create inserts the user together with its role rows in one transaction.
func (u *userRepository) Create(ctx context.Context, user *usersvc.User) error {
	return u.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		roles := user.Roles
		user.Roles = nil
		if err := tx.Omit("Roles").Create(user).Error; err != nil {
			return translate(err)
		}
		if len(roles) == 0 {
			return nil
		}
		if err := tx.Model(user).Association("Roles").Append(roles); err != nil {
			return err
		}
		user.Roles = roles
		return nil
	})
}

func (u *userRepository) FindByID(ctx context.Context, id string) (usersvc.User, error) {
	return u.first(ctx, "id = ?", id)
}

func (u *userRepository) FindByEmail(ctx context.Context, email string) (usersvc.User, error) {
	return u.first(ctx, "email = ?", email)
}

func (u *userRepository) FindByUserName(ctx context.Context, username string) (usersvc.User, error) {
	return u.first(ctx, "user_name = ?", username)
}

func (u *userRepository) first(ctx context.Context, query string, args ...interface{}) (usersvc.User, error) {
	var user usersvc.User
	err := u.db.WithContext(ctx).Preload("Roles").Where(query, args...).First(&user).Error
	if errors.Is(err, libgorm.ErrRecordNotFound) {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return user, err
}

func (u *userRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result := u.db.WithContext(ctx).Model(&usersvc.User{}).Where("id = ?", id).Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usersvc.ErrUserNotFound
	}
	return nil
}

func (u *userRepository) AddRole(ctx context.Context, id string, role usersvc.RoleName) error {
	user := usersvc.User{ID: id}
	return u.db.WithContext(ctx).Model(&user).Association("Roles").Append(&usersvc.Role{Name: role})
}

func (u *userRepository) EnsureRole(ctx context.Context, role usersvc.RoleName) error {
	return u.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&usersvc.Role{Name: role}).Error
}

func (u *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&usersvc.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (u *userRepository) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []usersvc.User
	err := u.db.WithContext(ctx).Select("id", "user_name").Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		names[user.ID] = user.UserName
	}
	return names, nil
}

func (u *userRepository) SelectList(ctx context.Context) ([]usersvc.SelectItem, error) {
	items := []usersvc.SelectItem{}
	err := u.db.WithContext(ctx).
		Model(&usersvc.User{}).
		Select("user_name AS text", "id AS value").
		Order("user_name").
		Scan(&items).Error
	return items, err
}

// translate turns a unique index violation on users into a DuplicateError.
func translate(err error) error {
	var where string

	var pgErr *pgconn.PgError
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		where = pgErr.ConstraintName
	case errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		where = sqliteErr.Error()
	default:
		return err
	}

	for _, field := range []string{usersvc.FieldUserName, usersvc.FieldEmail} {
		if strings.Contains(where, field) {
			return &usersvc.DuplicateError{Field: field}
		}
	}
	return err
}
