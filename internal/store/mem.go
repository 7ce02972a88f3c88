package store

import (
	"strings"
	"sync"
)

// MemStore keeps artifacts in process memory. Used when persistence is
// disabled; sessions backed by it cannot be resumed after exit.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Root() string { return "" }

func normalize(relPath string) string {
	return strings.Trim(strings.ReplaceAll(relPath, "\\", "/"), "/")
}

func (s *MemStore) Write(relPath string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]byte, len(content))
	copy(dup, content)
	s.blobs[normalize(relPath)] = dup
	return nil
}

func (s *MemStore) Read(relPath string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[normalize(relPath)]
	if !ok {
		return nil, false, nil
	}
	dup := make([]byte, len(content))
	copy(dup, content)
	return dup, true, nil
}

func (s *MemStore) Exists(relPath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[normalize(relPath)]
	return ok, nil
}

func (s *MemStore) List(relPath string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := normalize(relPath)
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var names []string
	for key := range s.blobs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			names = append(names, rest)
		}
	}
	return names, nil
}
