package gorm

import (
	"context"
	"fmt"
	"testing"

	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *libgorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := libgorm.Open(sqlite.Open(dsn), &libgorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&usersvc.Role{}, &usersvc.User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.EnsureRole(ctx, usersvc.RoleUser))
	require.NoError(t, repo.EnsureRole(ctx, usersvc.RoleUser))

	user := &usersvc.User{
		ID:           "u1",
		UserName:     "jane",
		Email:        "jane@example.com",
		PasswordHash: "hash",
		Roles:        []usersvc.Role{{Name: usersvc.RoleUser}},
	}
	require.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.True(t, byEmail.HasRole(usersvc.RoleUser))

	byName, err := repo.FindByUserName(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byName.Email)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)

	dup := &usersvc.User{ID: "u2", UserName: "jane", Email: "other@example.com", PasswordHash: "hash"}
	var derr *usersvc.DuplicateError
	require.ErrorAs(t, repo.Create(ctx, dup), &derr)
	assert.Equal(t, usersvc.FieldUserName, derr.Field)

	dup = &usersvc.User{ID: "u3", UserName: "janet", Email: "jane@example.com", PasswordHash: "hash"}
	require.ErrorAs(t, repo.Create(ctx, dup), &derr)
	assert.Equal(t, usersvc.FieldEmail, derr.Field)

	_, err = repo.FindByID(ctx, "u3")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}

func TestUserRepositoryRolesAndPasswords(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.EnsureRole(ctx, usersvc.RoleAdmin))
	require.NoError(t, repo.Create(ctx, &usersvc.User{ID: "a1", UserName: "root", Email: "root@example.com", PasswordHash: "old"}))

	require.NoError(t, repo.AddRole(ctx, "a1", usersvc.RoleAdmin))
	require.NoError(t, repo.UpdatePasswordHash(ctx, "a1", "new"))
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, "missing", "new"), usersvc.ErrUserNotFound)

	user, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "new", user.PasswordHash)
	role, ok := user.PrimaryRole()
	assert.True(t, ok)
	assert.Equal(t, usersvc.RoleAdmin, role)
}

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &usersvc.User{ID: "b", UserName: "bob", Email: "bob@example.com", PasswordHash: "x"}))
	require.NoError(t, repo.Create(ctx, &usersvc.User{ID: "a", UserName: "alice", Email: "alice@example.com", PasswordHash: "x"}))

	ok, err := repo.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := repo.Usernames(ctx, []string{"a", "b", "zzz"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "alice", "b": "bob"}, names)

	items, err := repo.SelectList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []usersvc.SelectItem{{Text: "alice", Value: "a"}, {Text: "bob", Value: "b"}}, items)
}
