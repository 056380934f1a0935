package tenantctx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(zap.NewNop(), config.SessionRedisConfig{
		Addr: mr.Addr(),
		TTL:  time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore_Lifecycle(t *testing.T) {
	_, store := newRedisTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, store.Set(ctx, "s1", 42))
	id, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	require.NoError(t, store.Clear(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestRedisStore_KeyPrefixAndTTL(t *testing.T) {
	mr, store := newRedisTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "s1", 7))
	assert.True(t, mr.Exists("tenant_selection:s1"))
	assert.Greater(t, mr.TTL("tenant_selection:s1"), time.Duration(0))
}

func TestRedisStore_MalformedValueDropped(t *testing.T) {
	mr, store := newRedisTestStore(t)
	ctx := context.Background()

	mr.Set("tenant_selection:s1", "not-a-number")

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.False(t, mr.Exists("tenant_selection:s1"), "corrupt value should be deleted")
}
