package route

import (
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current route set.
type Store struct {
	set atomic.Pointer[RouteSet]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current route set, or nil if none has been loaded.
func (s *Store) Get() *RouteSet {
	return s.set.Load()
}

// Set atomically replaces the current route set.
func (s *Store) Set(rs *RouteSet) {
	s.set.Store(rs)
}

// AgeSeconds returns the age of the current route set in seconds.
// Returns -1 if no route set is loaded.
func (s *Store) AgeSeconds() float64 {
	rs := s.set.Load()
	if rs == nil {
		return -1
	}
	return time.Since(rs.LoadedAt).Seconds()
}
