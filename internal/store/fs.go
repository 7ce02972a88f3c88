package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore persists artifacts under a session directory on disk.
type FSStore struct {
	root string
}

// NewFSStore creates (if needed) and opens a file-backed store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) Root() string { return s.root }

// resolve maps a slash-separated relative path into the store root,
// rejecting escapes above it.
func (s *FSStore) resolve(relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid artifact path: %q", relPath)
	}
	return filepath.Join(s.root, clean), nil
}

// Write is atomic: content lands in a temp file in the destination
// directory, then renames into place. Readers never observe a partial
// artifact.
func (s *FSStore) Write(relPath string, content []byte) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (s *FSStore) Read(relPath string) ([]byte, bool, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, false, err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact: %w", err)
	}
	return content, true, nil
}

func (s *FSStore) Exists(relPath string) (bool, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}
	return true, nil
}

func (s *FSStore) List(relPath string) ([]string, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		// Skip leftover temp files from interrupted writes.
		if strings.HasPrefix(name, ".tmp-") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
