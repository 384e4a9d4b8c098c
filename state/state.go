// Package state provides the durable key-value backend the record store
// checkpoints to. The wire format is owned by the checkpoint layer; this
// package only moves opaque bytes.
package state

import (
	"context"
	"errors"
	"strings"
)

// Common errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrClosed     = errors.New("state store closed")
	ErrInvalidKey = errors.New("invalid key")
)

// Store is a durable key-value store.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return ErrInvalidKey
	}
	return nil
}
