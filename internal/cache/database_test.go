package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wintent/plugin-config/internal/database/testutil"
	"github.com/wintent/plugin-config/internal/models"
)

func newStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }
	return store, &now
}

func TestDatabaseStoreIncrementWithinWindow(t *testing.T) {
	store, now := newStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "10.0.0.1|/api/attachments:list", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	*now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "10.0.0.1|/api/attachments:list", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)
}

func TestDatabaseStoreRestartsExpiredWindow(t *testing.T) {
	store, now := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.IncrementWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	*now = now.Add(2 * time.Minute)
	count, ttl, err := store.IncrementWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStorePurgeAndDelete(t *testing.T) {
	store, now := newStore(t)
	ctx := context.Background()

	_, _, err := store.IncrementWithTTL(ctx, "short", time.Second)
	require.NoError(t, err)
	_, _, err = store.IncrementWithTTL(ctx, "long", time.Hour)
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	require.NoError(t, store.Delete(ctx, "long"))
	var remaining int64
	require.NoError(t, store.db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestNilDatabaseStore(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.IncrementWithTTL(context.Background(), "k", time.Minute)
	require.Error(t, err)
}
