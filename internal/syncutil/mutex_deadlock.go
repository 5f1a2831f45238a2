//go:build deadlock

// Package syncutil holds the lock types shared by connections and backends.
// Building with -tags=deadlock swaps in github.com/sasha-s/go-deadlock so
// lock ordering problems in backends surface as reports instead of hangs.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting reader/writer mutex.
type RWMutex struct {
	deadlock.RWMutex
}
