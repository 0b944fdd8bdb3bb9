package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store keeps rendered pages on disk. A nil *Store is a disabled cache and
// every method on it is a no-op.
type Store struct {
	dir    string
	maxAge time.Duration
}

// NewStore returns nil when dir is empty.
func NewStore(dir string, maxAge time.Duration) *Store {
	if dir == "" || maxAge <= 0 {
		return nil
	}
	return &Store{dir: dir, maxAge: maxAge}
}

func (s *Store) pagesDir() string {
	return filepath.Join(s.dir, "pages")
}

// Path returns the cache file for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.pagesDir(), generateHash(key)+".html")
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func (s *Store) Write(key, html string) error {
	if s == nil {
		return nil
	}
	if err := os.MkdirAll(s.pagesDir(), 0755); err != nil {
		return err
	}
	// write then rename so readers never see a partial page
	tmp, err := os.CreateTemp(s.pagesDir(), "tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path(key))
}

// Read returns the cached page for key unless it is missing or expired.
func (s *Store) Read(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	path := s.Path(key)

	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > s.maxAge {
		return "", false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(content), true
}

func (s *Store) Clear(key string) error {
	if s == nil {
		return nil
	}
	err := os.Remove(s.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) ClearAll() error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.pagesDir())
}

// ClearOld removes expired pages.
func (s *Store) ClearOld() error {
	if s == nil {
		return nil
	}
	err := filepath.Walk(s.pagesDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		if time.Since(info.ModTime()) > s.maxAge {
			os.Remove(path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
