package redis

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

func newTestRepo(t *testing.T) storage.IKeyValueStorage {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewKVRepo(rdb, logger.NewNop())
}

func TestKVRepo_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	kv := newTestRepo(t)

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "auth_token", "abc"))
	val, err := kv.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	require.NoError(t, kv.Delete(ctx, "auth_token", "never_written"))
	_, err = kv.Get(ctx, "auth_token")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKVRepo_KeysThroughDevice(t *testing.T) {
	ctx := context.Background()
	kv := newTestRepo(t)

	a := storage.Device(kv, 1)
	b := storage.Device(kv, 2)

	require.NoError(t, a.Set(ctx, "video_progress_v1", "10"))
	require.NoError(t, a.Set(ctx, "video_progress_v2", "20"))
	require.NoError(t, b.Set(ctx, "video_progress_v3", "30"))

	keys, err := a.Keys(ctx, "video_progress_")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"video_progress_v1", "video_progress_v2"}, keys)

	_, err = b.Get(ctx, "video_progress_v1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
