package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Collection is a typed list stored as one JSON array per user.
// Read-modify-write calls are serialised by a per-collection mutex.
type Collection[T any] struct {
	store  Store
	key    string
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewCollection[T any](store Store, key string, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{store: store, key: key, logger: logger}
}

// Key returns the blob key this collection is stored under.
func (c *Collection[T]) Key() string { return c.key }

// Load returns the user's items. A missing blob is an empty list; so is a
// blob that fails to decode, which is logged and otherwise ignored.
func (c *Collection[T]) Load(ctx context.Context, userID string) ([]T, error) {
	raw, err := c.store.Get(ctx, userID, c.key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Str("key", c.key).Msg("discarding undecodable blob")
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save replaces the user's items.
func (c *Collection[T]) Save(ctx context.Context, userID string, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, userID, items)
}

func (c *Collection[T]) save(ctx context.Context, userID string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Put(ctx, userID, c.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// Append adds item to the end of the user's list.
func (c *Collection[T]) Append(ctx context.Context, userID string, item T) error {
	return c.Update(ctx, userID, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}

// Update loads the list, applies fn and saves the result atomically with
// respect to other writers of this collection. An error from fn aborts the
// write and is returned unchanged.
func (c *Collection[T]) Update(ctx context.Context, userID string, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.Load(ctx, userID)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return c.save(ctx, userID, next)
}

// Clear removes the user's list.
func (c *Collection[T]) Clear(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, userID, c.key); err != nil {
		return fmt.Errorf("clear %s: %w", c.key, err)
	}
	return nil
}

// Value is a single typed JSON document per user, e.g. settings.
type Value[T any] struct {
	store  Store
	key    string
	logger zerolog.Logger
}

func NewValue[T any](store Store, key string, logger zerolog.Logger) *Value[T] {
	return &Value[T]{store: store, key: key, logger: logger}
}

// Get returns the stored document. ok is false when nothing usable is stored.
func (v *Value[T]) Get(ctx context.Context, userID string) (val T, ok bool, err error) {
	raw, err := v.store.Get(ctx, userID, v.key)
	if errors.Is(err, ErrNotFound) {
		return val, false, nil
	}
	if err != nil {
		return val, false, fmt.Errorf("load %s: %w", v.key, err)
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		v.logger.Warn().Err(err).Str("user_id", userID).Str("key", v.key).Msg("discarding undecodable blob")
		var zero T
		return zero, false, nil
	}
	return val, true, nil
}

func (v *Value[T]) Put(ctx context.Context, userID string, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", v.key, err)
	}
	if err := v.store.Put(ctx, userID, v.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", v.key, err)
	}
	return nil
}

func (v *Value[T]) Delete(ctx context.Context, userID string) error {
	return v.store.Delete(ctx, userID, v.key)
}
