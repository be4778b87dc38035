package nonce_test

import (
	"context"
	"testing"
	"time"

	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store, err := nonce.NewMemoryStore(2, nonce.WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, store.SetWithExpiry(ctx, "a", "a", 10*time.Second))

	exists, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, exists)

	removed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, store.SetWithExpiry(ctx, "c", "c", 10*time.Second))
		clock.Advance(10 * time.Second)

		exists, err := store.Exists(ctx, "c")
		require.NoError(t, err)
		assert.False(t, exists)

		removed, err := store.Delete(ctx, "c")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("eviction", func(t *testing.T) {
		for _, k := range []string{"x", "y", "z"} {
			require.NoError(t, store.SetWithExpiry(ctx, k, k, time.Minute))
		}
		assert.Equal(t, 2, store.Len())

		exists, err := store.Exists(ctx, "x")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	assert.NoError(t, store.Ping(ctx))
	store.Close()
	assert.Equal(t, 0, store.Len())
}
