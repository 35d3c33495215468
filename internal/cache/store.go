// Package cache implements a content-addressed result cache: a cache key
// is (candidate hash, level identifier, dataset hash), and a hit returns
// the manifest and result payload of the most recent write for that exact
// triple. Writes commit atomically via write-to-temp-then-rename so a reader
// never observes a partially written entry.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Key identifies one cached result.
type Key struct {
	CandidateHash string
	Level         string
	DatasetHash   string
}

func (k Key) path(root string) string {
	name := fmt.Sprintf("%s_%s_%s.json", k.CandidateHash, k.Level, k.DatasetHash)
	return filepath.Join(root, name)
}

// Entry is one cached result: its manifest plus the arbitrary result
// payload produced by the level that ran.
type Entry struct {
	Manifest Manifest        `json:"manifest"`
	Result   json.RawMessage `json:"result"`
}

// Store is a directory-backed content-addressed cache. Concurrent
// candidates and levels may read and write distinct keys simultaneously;
// access to one key is serialized by a per-key RWMutex so a writer never
// races a reader of the same entry.
type Store struct {
	root string

	mu      sync.Mutex // guards locks map itself, not entries
	locks   map[Key]*sync.RWMutex
}

// NewStore opens (creating if necessary) a cache rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: dir, locks: make(map[Key]*sync.RWMutex)}, nil
}

func (s *Store) lockFor(k Key) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[k] = l
	}
	return l
}

// Get returns the cached entry for k, or (Entry{}, false) on a miss.
func (s *Store) Get(k Key) (Entry, bool, error) {
	lock := s.lockFor(k)
	lock.RLock()
	defer lock.RUnlock()

	raw, err := os.ReadFile(k.path(s.root))
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Put writes an entry for k, committing atomically so concurrent readers
// never see a partial write: the payload lands in a temp file in the same
// directory, then an os.Rename swaps it into place.
func (s *Store) Put(k Key, e Entry) error {
	lock := s.lockFor(k)
	lock.Lock()
	defer lock.Unlock()

	if e.Manifest.RunID == "" {
		e.Manifest.RunID = uuid.NewString()
	}

	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	finalPath := k.path(s.root)
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
