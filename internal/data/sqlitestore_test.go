package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/conf"
)

func TestSQLiteStore_SeedAndRewrite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "data", "groups.db")

	store, err := NewSQLiteStore(ctx, dbPath, domain.NewGroupSet(-1, -2))
	require.NoError(t, err)

	groups, err := store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-1, -2)))

	require.NoError(t, store.Write(ctx, domain.NewGroupSet(-2, -3)))
	groups, err = store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-2, -3)))
	require.NoError(t, store.Close())

	// Seed is ignored once the table has rows
	reopened, err := NewSQLiteStore(ctx, dbPath, domain.NewGroupSet(-99))
	require.NoError(t, err)
	defer reopened.Close()

	groups, err = reopened.Read(ctx)
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-2, -3)))
}

func TestSQLiteStore_WriteEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "groups.db"), domain.NewGroupSet(-1))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(ctx, domain.NewGroupSet()))

	groups, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, groups.Len())
}

func TestNewMembershipStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	envStore, err := NewMembershipStore(ctx, conf.GroupsConfig{
		Store:      conf.StoreEnv,
		ConfigPath: filepath.Join(dir, ".env"),
		Initial:    "-1",
	}, zap.NewNop())
	require.NoError(t, err)
	groups, err := envStore.Read(ctx)
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-1)))

	sqlStore, err := NewMembershipStore(ctx, conf.GroupsConfig{
		Store:   conf.StoreSQLite,
		DBPath:  filepath.Join(dir, "groups.db"),
		Initial: "-1,-2",
	}, zap.NewNop())
	require.NoError(t, err)
	defer sqlStore.Close()
	groups, err = sqlStore.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, groups.Len())

	_, err = NewMembershipStore(ctx, conf.GroupsConfig{Store: "redis"}, zap.NewNop())
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Read(ctx context.Context) (domain.GroupSet, error) {
	return nil, assert.AnError
}
func (failingStore) Write(ctx context.Context, groups domain.GroupSet) error { return nil }
func (failingStore) Close() error                                            { return nil }

func TestLoadInitialGroups(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".env")

	// Empty store falls back to the environment value
	groups, err := LoadInitialGroups(ctx, NewEnvFileStore(path, ""), "-4,-5", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-4, -5)))

	groups, err = LoadInitialGroups(ctx, failingStore{}, "-4", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-4)))

	_, err = LoadInitialGroups(ctx, failingStore{}, "x", zap.NewNop())
	assert.Error(t, err)
}
