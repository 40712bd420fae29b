package services

import (
	"context"
	"errors"

	"quest-ledger/models"
)

// Mutation is the value (and audit events) an update wants committed.
type Mutation struct {
	Value  []byte
	Events []models.QuestEvent
}

// UpdateFunc receives the current value of a key and decides what to write.
// Returning a nil Mutation leaves the key untouched; returning an error aborts
// the update with nothing committed.
type UpdateFunc func(current []byte, found bool) (*Mutation, error)

// KVStore is the ledger's backing store. Update must run fn under mutual
// exclusion for that key only.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
	Events(ctx context.Context, userID string) ([]models.QuestEvent, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrStoreClosed = errors.New("store is closed")
