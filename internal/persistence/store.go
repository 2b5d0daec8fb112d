package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when nothing is stored under the key.
	ErrNotFound = errors.New("persistence: key not found")
	// ErrMalformed marks a stored value that could not be decoded.
	ErrMalformed = errors.New("persistence: malformed value")
)

// Store is the durable key-value port behind cart, address and contact snapshots.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

// LoadJSON decodes the value stored under key into dest. It reports false when the
// key is absent. Decode failures wrap ErrMalformed so callers can treat them as absence.
func LoadJSON(ctx context.Context, store Store, key string, dest any) (bool, error) {
	raw, err := store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrMalformed, key, err)
	}
	return true, nil
}

// SaveJSON encodes value and stores it under key.
func SaveJSON(ctx context.Context, store Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Save(ctx, key, raw)
}

// Key joins a snapshot kind and owner into a storage key.
func Key(kind, owner string) string {
	return kind + ":" + owner
}
