package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/utils"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), config.NewGormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func newTestUserStore(t *testing.T, db *gorm.DB) *UserStore {
	t.Helper()
	return NewUserStore(db, utils.NewTokenSigner("test-secret", 0))
}

func mustCreateUser(t *testing.T, users *UserStore, username string, role models.Role) *models.User {
	t.Helper()
	user, err := users.Create(context.Background(), NewUser{
		Username: username,
		Email:    username + "@x.com",
		Password: "secret1",
		Role:     string(role),
	})
	require.NoError(t, err)
	return user
}
