package accounts

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoginResult reports the outcome of a credential check.
type LoginResult int

const (
	// LoginFailure means the name exists but the digest does not match.
	LoginFailure LoginResult = iota
	// LoginSuccess means the record was found and the digest matched.
	LoginSuccess
	// LoginCreated means the name was unseen and a default record was
	// appended.
	LoginCreated
)

func (r LoginResult) String() string {
	switch r {
	case LoginSuccess:
		return "success"
	case LoginCreated:
		return "created"
	case LoginFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Store persists accounts as one pipe-delimited line each in a flat file.
// All access is serialized on the store's own mutex; callers never need
// external locking.
type Store struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	records []Account
	loaded  bool
	// lastWrite is the exact payload of the store's own most recent
	// flush. The watcher's reload is skipped only when the file still
	// holds it, so an outside edit is never mistaken for our own write.
	lastWrite []byte
}

// Open prepares a store backed by the given file. The file is created lazily
// on the first append; a fresh deployment starts with no accounts.
func Open(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Login scans the store for name. A match with an equal digest loads the
// full record; a digest mismatch populates nothing; an unseen name appends a
// default record and returns it.
func (s *Store) Login(name, digest string) (Account, LoginResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Printf("accounts: load %s: %v", s.path, err)
		return Account{}, LoginFailure
	}

	for _, rec := range s.records {
		if rec.Name != name {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(rec.Pass), []byte(digest)) == 1 {
			return rec, LoginSuccess
		}
		// Wrong password: the record stays untouched, the caller gets
		// nothing back.
		return Account{}, LoginFailure
	}

	acc := NewAccount(name, digest)
	s.records = append(s.records, acc)
	if err := s.flushLocked(); err != nil {
		s.logger.Printf("accounts: append %q: %v", name, err)
	}
	return acc, LoginCreated
}

// Save rewrites the record whose name matches acc in place. A save for a
// name with no record appends it; losing an authenticated client's sheet
// because the file was hand-edited underneath us is worse than growing the
// file by one line.
func (s *Store) Save(acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return fmt.Errorf("load %s: %w", s.path, err)
	}

	found := false
	for i, rec := range s.records {
		if rec.Name == acc.Name {
			s.records[i] = acc
			found = true
			break
		}
	}
	if !found {
		s.logger.Printf("accounts: save for %q found no record, appending", acc.Name)
		s.records = append(s.records, acc)
	}
	return s.flushLocked()
}

// Lookup returns the record for name, if present.
func (s *Store) Lookup(name string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Printf("accounts: load %s: %v", s.path, err)
		return Account{}, false
	}
	for _, rec := range s.records {
		if rec.Name == name {
			return rec, true
		}
	}
	return Account{}, false
}

// Len reports the number of records currently stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return 0
	}
	return len(s.records)
}

// Invalidate drops the in-memory cache so the next operation rereads the
// file. The watcher calls this when the file changes on disk; a change event
// for content the store just wrote itself is a no-op.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastWrite != nil {
		if data, err := os.ReadFile(s.path); err == nil && bytes.Equal(data, s.lastWrite) {
			return
		}
	}
	s.loaded = false
	s.records = nil
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.records = nil
			s.loaded = true
			return nil
		}
		return err
	}
	defer f.Close()

	var records []Account
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 4096), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			s.logger.Printf("accounts: %s line %d skipped: %v", s.path, lineNo, err)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	s.records = records
	s.loaded = true
	return nil
}

func (s *Store) flushLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var b strings.Builder
	for _, rec := range s.records {
		b.WriteString(EncodeRecord(rec))
		b.WriteByte('\n')
	}

	data := []byte(b.String())
	s.lastWrite = data
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return err
	}
	s.loaded = true
	return nil
}
