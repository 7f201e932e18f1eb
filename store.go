package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrExists is returned by Store.Create when the key is already taken.
var ErrExists = errors.New("key already exists")

// Store is the key/value view the bot logic depends on. Implementations must
// apply each mutation durably before returning nil.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Put(ctx context.Context, key string, value T) error
	Create(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Blob persists one whole document. Load returns (nil, nil) when nothing has
// been saved yet.
type Blob interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, v []byte) error
	String() string
}

// DocumentStore keeps the encoded document in memory and rewrites all of it
// on every mutation. Writers are serialized by mu; a failed Save leaves the
// in-memory copy as it was. Values are decoded on each Get, so callers never
// share memory with the stored state.
type DocumentStore[T any] struct {
	mu   sync.RWMutex
	blob Blob
	data map[string]json.RawMessage
}

func OpenDocumentStore[T any](ctx context.Context, blob Blob) (*DocumentStore[T], error) {
	v, err := blob.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", blob, err)
	}
	data := map[string]json.RawMessage{}
	if len(v) > 0 {
		if err = json.Unmarshal(v, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", blob, err)
		}
	}
	slog.Info("open document store", "blob", blob.String(), "keys", len(data))
	return &DocumentStore[T]{blob: blob, data: data}, nil
}

func (o *DocumentStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	var value T
	o.mu.RLock()
	raw, ok := o.data[key]
	o.mu.RUnlock()
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("decode %s[%s]: %w", o.blob, key, err)
	}
	return value, true, nil
}

func (o *DocumentStore[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s[%s]: %v", ErrPersistence, o.blob, key, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commit(ctx, func(next map[string]json.RawMessage) { next[key] = raw })
}

func (o *DocumentStore[T]) Create(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s[%s]: %v", ErrPersistence, o.blob, key, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.data[key]; ok {
		return ErrExists
	}
	return o.commit(ctx, func(next map[string]json.RawMessage) { next[key] = raw })
}

func (o *DocumentStore[T]) Delete(ctx context.Context, key string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.data[key]; !ok {
		return false, nil
	}
	if err := o.commit(ctx, func(next map[string]json.RawMessage) { delete(next, key) }); err != nil {
		return false, err
	}
	return true, nil
}

func (o *DocumentStore[T]) Keys(_ context.Context) ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.data))
	for k := range o.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// commit must be called with mu held.
func (o *DocumentStore[T]) commit(ctx context.Context, mutate func(next map[string]json.RawMessage)) error {
	next := make(map[string]json.RawMessage, len(o.data)+1)
	for k, v := range o.data {
		next[k] = v
	}
	mutate(next)
	v, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, o.blob, err)
	}
	if err = o.blob.Save(ctx, v); err != nil {
		slog.Error("save document failed", "blob", o.blob.String(), "err", err)
		return fmt.Errorf("%w: save %s: %v", ErrPersistence, o.blob, err)
	}
	o.data = next
	return nil
}
