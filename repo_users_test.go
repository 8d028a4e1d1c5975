package identity_test

import (
	"context"
	"database/sql"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	// a second connection against :memory: would get its own empty database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.NewCreateTable().
		Model((*identity.User)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestUser(t *testing.T, email string) *identity.User {
	t.Helper()

	hash, err := identity.HashPassword("password123")
	require.NoError(t, err)

	return &identity.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
}

func TestUsersRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewUsersRepository(newTestDB(t))

	t.Run("assigns an ID and normalizes the email", func(t *testing.T) {
		user := newTestUser(t, "  MiXeD@Example.COM  ")

		created, err := repo.Create(ctx, user)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "mixed@example.com", created.Email)
		assert.True(t, created.Active)
	})

	t.Run("duplicate email returns typed conflict", func(t *testing.T) {
		first := newTestUser(t, "dupe@example.com")
		_, err := repo.Create(ctx, first)
		require.NoError(t, err)

		// same address in a different case collides after normalization
		second := newTestUser(t, "DUPE@example.com")
		_, err = repo.Create(ctx, second)

		require.Error(t, err)
		assert.True(t, identity.IsDuplicateEmailError(err))
	})
}

func TestUsersRepositoryGetByEmail(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewUsersRepository(newTestDB(t))

	created, err := repo.Create(ctx, newTestUser(t, "lookup@example.com"))
	require.NoError(t, err)

	t.Run("finds by normalized input", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, " LOOKUP@example.com ")

		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "lookup@example.com", found.Email)
	})

	t.Run("unknown email returns not found", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "missing@example.com")

		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("empty email returns not found", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "   ")

		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})
}

func TestUsersRepositoryGetByIdentifier(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewUsersRepository(newTestDB(t))

	created, err := repo.Create(ctx, newTestUser(t, "ident@example.com"))
	require.NoError(t, err)

	t.Run("resolves record ID", func(t *testing.T) {
		found, err := repo.GetByIdentifier(ctx, created.ID.String())

		require.NoError(t, err)
		assert.Equal(t, created.Email, found.Email)
	})

	t.Run("resolves email", func(t *testing.T) {
		found, err := repo.GetByIdentifier(ctx, "IDENT@example.com")

		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("unknown identifier returns not found", func(t *testing.T) {
		_, err := repo.GetByIdentifier(ctx, uuid.New().String())

		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})
}

func TestUsersRepositorySetActive(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewUsersRepository(newTestDB(t))

	created, err := repo.Create(ctx, newTestUser(t, "toggle@example.com"))
	require.NoError(t, err)
	require.True(t, created.Active)

	disabled, err := repo.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Active)

	enabled, err := repo.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.Active)
}

func TestNewDeterministicUserID(t *testing.T) {
	id1, err := identity.NewDeterministicUserID("stable@example.com")
	require.NoError(t, err)

	id2, err := identity.NewDeterministicUserID(" STABLE@example.com ")
	require.NoError(t, err)

	id3, err := identity.NewDeterministicUserID("other@example.com")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}
