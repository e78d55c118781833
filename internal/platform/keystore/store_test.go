package keystore

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccount(t *testing.T) domain.Account {
	t.Helper()
	account, err := domain.NewAccount("tok_live_1234567890", 180*24*time.Hour, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	return account
}

func assertSameAccount(t *testing.T, want domain.Account, got *domain.Account) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.Expiration, got.Expiration)
	assert.True(t, want.GrantDate.Equal(got.GrantDate), "grant date %s != %s", want.GrantDate, got.GrantDate)
}

func newRedisStore(t *testing.T, secret string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "", []byte(secret), testLogger())
	require.NoError(t, err)
	return store, mr
}

func TestStores(t *testing.T) {
	t.Parallel()

	factories := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			store, _ := newRedisStore(t, "correct horse battery staple")
			return store
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			t.Run("load before save", func(t *testing.T) {
				store := factory(t)
				account, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Nil(t, account)
			})

			t.Run("save then load", func(t *testing.T) {
				store := factory(t)
				want := newAccount(t)
				require.NoError(t, store.Save(ctx, want))

				got, err := store.Load(ctx)
				require.NoError(t, err)
				assertSameAccount(t, want, got)
				assert.True(t, got.IsAuthorized())
			})

			t.Run("save replaces", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Save(ctx, newAccount(t)))

				second, err := domain.NewAccount("tok_second_abcdefgh", time.Hour, time.Now())
				require.NoError(t, err)
				require.NoError(t, store.Save(ctx, second))

				got, err := store.Load(ctx)
				require.NoError(t, err)
				assertSameAccount(t, second, got)
			})

			t.Run("invalid account", func(t *testing.T) {
				store := factory(t)
				err := store.Save(ctx, domain.Account{Expiration: time.Hour})
				assert.ErrorIs(t, err, ErrInvalidAccount)
				assert.ErrorIs(t, err, domain.ErrEmptyAccessToken)
			})

			t.Run("delete", func(t *testing.T) {
				store := factory(t)
				require.NoError(t, store.Save(ctx, newAccount(t)))
				require.NoError(t, store.Delete(ctx))

				got, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Nil(t, got)
			})
		})
	}
}

func TestRedisStore_RecordIsSealed(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, "secret-one")
	account := newAccount(t)
	require.NoError(t, store.Save(context.Background(), account))

	raw, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, account.AccessToken)
	assert.False(t, strings.HasPrefix(raw, "{"))

	ttl := mr.TTL(DefaultKey)
	assert.Greater(t, ttl, 170*24*time.Hour)
	assert.LessOrEqual(t, ttl, 180*24*time.Hour)
}

func TestRedisStore_NearlyExpiredAccountStillExpires(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, "secret")
	ctx := context.Background()

	grants := map[string]time.Time{
		"a moment left": time.Now().Add(-time.Hour + 100*time.Millisecond),
		"already over":  time.Now().Add(-2 * time.Hour),
	}
	for name, grantDate := range grants {
		account, err := domain.NewAccount("tok_live_1234567890", time.Hour, grantDate)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, account), name)
		assert.Equal(t, time.Second, mr.TTL(DefaultKey), name)
	}
}

func TestRedisStore_WrongSecret(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	writer, err := NewRedisStore(client, "", []byte("secret-one"), testLogger())
	require.NoError(t, err)
	reader, err := NewRedisStore(client, "", []byte("secret-two"), testLogger())
	require.NoError(t, err)

	require.NoError(t, writer.Save(context.Background(), newAccount(t)))

	_, err = reader.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorruptRecord)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "load", storeErr.Operation)
}

func TestRedisStore_GarbageRecord(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, "secret")
	require.NoError(t, mr.Set(DefaultKey, "not base64 at all!"))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, "secret")
	mr.Close()

	err := store.Save(context.Background(), newAccount(t))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewRedisStore_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(nil, "", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestLoadAuthorized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	account, ok, err := LoadAuthorized(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, account)
	assert.False(t, ok)

	expired, err := domain.NewAccount("tok_expired_abcdef", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, expired))

	account, ok, err = LoadAuthorized(ctx, store)
	require.NoError(t, err)
	assert.NotNil(t, account)
	assert.False(t, ok)
}
