package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// setupMiniredis поднимает Redis в памяти и открывает Store поверх него.
func setupMiniredis(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := Open(context.Background(), mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNew_AppliesOptions(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	store := New(client)
	require.Equal(t, DefaultPrefix+"token", store.key("token"))

	store = New(client, WithPrefix("app:"), WithPrefix(""))
	require.Equal(t, "app:token", store.key("token"))
}

func TestStore_SetGetDeleteWithPrefix(t *testing.T) {
	store, mr := setupMiniredis(t, WithPrefix("sf:"))
	ctx := context.Background()

	_, err := store.Get(ctx, domain.KeyCartCount)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, domain.KeyCartCount, "4"))
	raw, err := mr.Get("sf:" + domain.KeyCartCount)
	require.NoError(t, err)
	require.Equal(t, "4", raw)

	v, err := store.Get(ctx, domain.KeyCartCount)
	require.NoError(t, err)
	require.Equal(t, "4", v)

	require.NoError(t, store.Delete(ctx, domain.KeyCartCount))
	require.NoError(t, store.Delete(ctx, domain.KeyCartCount))
	require.False(t, mr.Exists("sf:"+domain.KeyCartCount))
}

func TestStore_TTLExpiresValues(t *testing.T) {
	store, mr := setupMiniredis(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domain.KeyJoinPromptShown, "true"))
	require.Equal(t, time.Minute, mr.TTL(DefaultPrefix+domain.KeyJoinPromptShown))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, domain.KeyJoinPromptShown)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStore_PingReportsOutage(t *testing.T) {
	store, mr := setupMiniredis(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	mr.Close()
	require.Error(t, store.Ping(ctx))
	_, err := store.Get(ctx, domain.KeyToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestOpen_UnreachableAddr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, "127.0.0.1:1")
	require.Error(t, err)
}
