package keystore_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"path/filepath"
	"testing"

	"github.com/gematik/zero-lab/go/verifier/keystore"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *keystore.Store {
	t.Helper()
	store, err := keystore.Open(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	privateKey, err := keystore.GenerateKey()
	require.NoError(t, err)

	stored, err := store.Put(ctx, "did:example:1", privateKey)
	require.NoError(t, err)
	assert.Equal(t, privateKey.KeyID(), stored.KID)

	loaded, err := store.Get(ctx, stored.KID)
	require.NoError(t, err)
	assert.Equal(t, "did:example:1", loaded.Holder)
	assert.Equal(t, stored.CreatedAt, loaded.CreatedAt)

	// only the public part is persisted
	var raw map[string]any
	data, err := json.Marshal(loaded.JWK)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "d")
	assert.Equal(t, "EC", raw["kty"])

	require.NoError(t, store.Delete(ctx, stored.KID))
	_, err = store.Get(ctx, stored.KID)
	assert.ErrorIs(t, err, keystore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, stored.KID), keystore.ErrNotFound)
}

func TestPutDerivesKidFromThumbprint(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw.Public())
	require.NoError(t, err)
	require.Empty(t, key.KeyID())

	thumbprint, err := keystore.ThumbprintS256(key)
	require.NoError(t, err)

	stored, err := store.Put(ctx, "did:example:2", key)
	require.NoError(t, err)
	assert.Equal(t, thumbprint, stored.KID)
	assert.Equal(t, thumbprint, stored.JWK.KeyID())
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, holder := range []string{"did:example:a", "did:example:b", "did:example:a"} {
		key, err := keystore.GenerateKey()
		require.NoError(t, err)
		_, err = store.Put(ctx, holder, key)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := store.List(ctx, "did:example:a")
	require.NoError(t, err)
	assert.Len(t, forA, 2)
	for _, k := range forA {
		assert.Equal(t, "did:example:a", k.Holder)
	}

	none, err := store.List(ctx, "did:example:unknown")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.NoError(t, store.Ping(ctx))
}

func TestParseKey(t *testing.T) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(raw.Public())
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	fromPem, err := keystore.ParseKey(pemData)
	require.NoError(t, err)

	generated, err := keystore.GenerateKey()
	require.NoError(t, err)
	jsonData, err := json.Marshal(generated)
	require.NoError(t, err)

	fromJSON, err := keystore.ParseKey(jsonData)
	require.NoError(t, err)
	assert.Equal(t, generated.KeyID(), fromJSON.KeyID())

	pemThumbprint, err := keystore.ThumbprintS256(fromPem)
	require.NoError(t, err)
	assert.NotEmpty(t, pemThumbprint)

	_, err = keystore.ParseKey([]byte("not a key"))
	assert.Error(t, err)
}
