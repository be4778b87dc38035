package nonce_test

import (
	"context"
	"testing"
	"time"

	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a local Valkey or Redis on the default port and is skipped
// when none is listening.
func TestValkeyNonceService(t *testing.T) {
	store, err := nonce.DialValkey(nonce.DefaultValkeyConfig())
	if err != nil {
		t.Skipf("valkey not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	service, err := nonce.NewStoreService(store, nonce.Options{ExpirySeconds: 2, ConsumeOnRedeem: true})
	require.NoError(t, err)

	nonceStr, err := service.Get(ctx)
	require.NoError(t, err)
	t.Logf("nonce: %s", nonceStr)

	require.NoError(t, service.Redeem(ctx, nonceStr))
	assert.ErrorIs(t, service.Redeem(ctx, nonceStr), nonce.ErrInvalidNonce)

	anotherNonceStr, err := service.Get(ctx)
	require.NoError(t, err)

	time.Sleep(3 * time.Second) // let the nonce expire

	assert.ErrorIs(t, service.Redeem(ctx, anotherNonceStr), nonce.ErrInvalidNonce)
	assert.NoError(t, service.Ping(ctx))
}

func TestValkeyUnreachable(t *testing.T) {
	cfg := nonce.DefaultValkeyConfig()
	cfg.Port = 1

	_, err := nonce.DialValkey(cfg)
	assert.ErrorIs(t, err, nonce.ErrStoreUnavailable)
}

func TestValkeyConfig(t *testing.T) {
	cfg := nonce.DefaultValkeyConfig()
	assert.Equal(t, "127.0.0.1:6379", cfg.Address())

	cfg.UseTLS = true
	cfg.DB = 3
	option := cfg.ClientOption()
	assert.Equal(t, []string{"127.0.0.1:6379"}, option.InitAddress)
	assert.Equal(t, 3, option.SelectDB)
	require.NotNil(t, option.TLSConfig)
	assert.Equal(t, "127.0.0.1", option.TLSConfig.ServerName)
}
