package main

import (
	"context"
	"sync"
	"time"
)

func CreateTimeoutContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// keyedMutex serializes work per key. Locks are never freed; the key space
// is the set of admin ids, which is tiny.
type keyedMutex struct {
	locks sync.Map
}

func (o *keyedMutex) Lock(key string) func() {
	v, _ := o.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
