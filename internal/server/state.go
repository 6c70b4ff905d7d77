package server

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/teremich/spotify-true-random/internal/shared"
)

// StateStore keeps the OAuth anti-forgery states handed out by /login.
//
// Each state is valid once and expires after the configured TTL.
type StateStore struct {
	cache *ccache.Cache[struct{}]
	ttl   time.Duration
	stop  sync.Once
}

// NewStateStore creates a store holding at most maxSize pending states.
func NewStateStore(ttl time.Duration, maxSize int64) *StateStore {
	return &StateStore{
		cache: ccache.New(ccache.Configure[struct{}]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

// Issue creates and remembers a new random state.
func (s *StateStore) Issue() string {
	state := shared.GenerateID()
	s.cache.Set(state, struct{}{}, s.ttl)
	return state
}

// Consume reports whether state was issued and has not expired, and forgets it.
func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}
	item := s.cache.Get(state)
	if item == nil {
		return false
	}
	s.cache.Delete(state)
	return !item.Expired()
}

// Stop releases the cache's background worker. Later calls do nothing.
func (s *StateStore) Stop() {
	s.stop.Do(s.cache.Stop)
}
