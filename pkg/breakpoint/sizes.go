package breakpoint

import (
	"sync"
)

// SizeStore tracks the byte width of data breakpoints, keyed by a
// caller-chosen string (by convention the breakpoint id). It lives for the
// whole process so that widths survive reconnects; inject one store and
// share it rather than creating one per session.
type SizeStore struct {
	mu    sync.RWMutex
	sizes map[string]uint32
}

func NewSizeStore() *SizeStore {
	return &SizeStore{sizes: map[string]uint32{}}
}

func (s *SizeStore) Get(key string) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	size, ok := s.sizes[key]
	return size, ok
}

func (s *SizeStore) Set(key string, size uint32) {
	s.mu.Lock()
	s.sizes[key] = size
	s.mu.Unlock()
}

func (s *SizeStore) Remove(key string) {
	s.mu.Lock()
	delete(s.sizes, key)
	s.mu.Unlock()
}
