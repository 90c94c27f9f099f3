package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Store persists named collections as JSON documents on disk.
type Store struct {
	dir string
	log pslog.Logger
	mu  sync.Mutex
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load decodes a collection into out. The boolean is false when the
// collection has never been saved.
func (s *Store) Load(collection schema.Collection, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.pathFor(collection)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "collection", collection)
			}
			return false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "collection", collection, "err", err)
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "collection", collection, "err", err)
		}
		return false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "collection", collection, "bytes", len(data))
	}
	return true, nil
}

// Save writes value as the collection's document, replacing it atomically.
func (s *Store) Save(collection schema.Collection, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.pathFor(collection)
	fail := func(err error) error {
		if s.log != nil {
			s.log.Warn("state save failed", "collection", collection, "err", err)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fail(err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "collection", collection, "bytes", len(data))
	}
	return nil
}

// Clear removes the collection's document. Clearing a missing collection
// is not an error.
func (s *Store) Clear(collection schema.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.pathFor(collection)); err != nil && !errors.Is(err, os.ErrNotExist) {
		if s.log != nil {
			s.log.Warn("state clear failed", "collection", collection, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("state cleared", "collection", collection)
	}
	return nil
}

func (s *Store) pathFor(collection schema.Collection) string {
	name := sanitize(string(collection))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
