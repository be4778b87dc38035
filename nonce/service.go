package nonce

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// StoreService implements Service on top of a Store. It keeps no state of
// its own; concurrent callers are coordinated by the store alone.
type StoreService struct {
	options Options
	store   Store
}

func NewStoreService(store Store, options Options) (*StoreService, error) {
	if store == nil {
		return nil, fmt.Errorf("nonce store is required")
	}
	if options.ExpirySeconds < 0 {
		return nil, fmt.Errorf("invalid nonce expiry: %d seconds", options.ExpirySeconds)
	}
	if options.ExpirySeconds == 0 {
		options.ExpirySeconds = DefaultExpirySeconds
	}
	if !options.ConsumeOnRedeem {
		slog.Warn("nonces are not consumed on redeem and can be replayed until they expire", "expiry_seconds", options.ExpirySeconds)
	}
	return &StoreService{
		options: options,
		store:   store,
	}, nil
}

func (s *StoreService) Options() Options {
	return s.options
}

// Get issues a fresh nonce and registers it in the store. No nonce is
// returned unless the store accepted the write.
func (s *StoreService) Get(ctx context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	nonce := id.String()

	if err := s.store.SetWithExpiry(ctx, storeKey(nonce), nonce, s.options.Expiry()); err != nil {
		return "", unavailable("storing nonce", err)
	}

	return nonce, nil
}

// Redeem checks that the nonce is outstanding and, if configured, consumes
// it. Of several concurrent redeems of the same nonce only one succeeds.
func (s *StoreService) Redeem(ctx context.Context, nonce string) error {
	if nonce == "" {
		return ErrInvalidNonce
	}
	key := storeKey(nonce)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return unavailable("checking nonce", err)
	}
	if !exists {
		return ErrInvalidNonce
	}

	if !s.options.ConsumeOnRedeem {
		return nil
	}

	removed, err := s.store.Delete(ctx, key)
	if err != nil {
		return unavailable("consuming nonce", err)
	}
	if !removed {
		// expired or consumed by a concurrent redeem in between
		return ErrInvalidNonce
	}

	return nil
}

func (s *StoreService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
