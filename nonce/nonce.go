// Package nonce issues single-use challenge nonces and redeems them against
// a key-value store with per-entry expiry.
//
// The store is the only place a nonce lives. An outstanding nonce is a live
// key; an expired, consumed or never issued nonce is an absent key, and the
// three cases are reported identically as ErrInvalidNonce.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultExpirySeconds is the lifetime of an issued nonce unless configured otherwise.
	DefaultExpirySeconds = 60

	keyPrefix = "nonce:"
)

var (
	// ErrStoreUnavailable marks infrastructure failures reaching the nonce store.
	ErrStoreUnavailable = errors.New("nonce store unavailable")
	// ErrInvalidNonce is returned for unknown, expired and already consumed nonces alike.
	ErrInvalidNonce = errors.New("nonce expired or unknown")
)

type Options struct {
	ExpirySeconds int64
	// ConsumeOnRedeem deletes the nonce on a successful redeem. Without it a
	// nonce can be redeemed any number of times until it expires.
	ConsumeOnRedeem bool
}

func DefaultOptions() Options {
	return Options{
		ExpirySeconds:   DefaultExpirySeconds,
		ConsumeOnRedeem: true,
	}
}

func (o Options) Expiry() time.Duration {
	return time.Duration(o.ExpirySeconds) * time.Second
}

// Service issues and redeems nonces.
type Service interface {
	Get(ctx context.Context) (string, error)
	Redeem(ctx context.Context, nonce string) error
}

// Store is the key-value backend holding outstanding nonces. Implementations
// must be safe for concurrent use and must treat an expired key exactly like
// a key that was never set. Errors must wrap ErrStoreUnavailable.
type Store interface {
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the key and reports whether a live entry was removed.
	Delete(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close()
}

func storeKey(nonce string) string {
	return keyPrefix + nonce
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
