//go:build !deadlock

// Package syncutil holds the lock types shared by connections and backends.
// Building with -tags=deadlock swaps in github.com/sasha-s/go-deadlock so
// lock ordering problems in backends surface as reports instead of hangs.
package syncutil

import "sync"

// Mutex is a plain sync.Mutex in regular builds.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex in regular builds.
//
//nolint:gocritic // embedding exposes the RWMutex methods directly
type RWMutex struct {
	sync.RWMutex
}
