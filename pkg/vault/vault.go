// Package vault owns a tenant's note directory: a flat folder of markdown
// entity notes that is the single authoritative store. All mutation goes
// through merge rules that only ever add content; the graph and vector
// views elsewhere are derived from what this package writes.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alibaizhanov/mengram/pkg/note"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a named note does not exist.
	ErrNotFound = errors.New("vault: note not found")
)

var unsafeNameRe = regexp.MustCompile(`[<>:"/\\|?*]`)

// Store manages one tenant's vault directory. A single writer mutates the
// directory at a time; readers see consistent note files because every
// write is a whole-file replace via rename.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu  sync.RWMutex
	gen uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates a Store over dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create dir: %w", err)
	}
	return s, nil
}

// Dir returns the vault directory path.
func (s *Store) Dir() string { return s.dir }

// Generation returns a counter that increments on every mutation. Derived
// views compare it against the generation they were built from to decide
// whether a rebuild is due.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Sanitize replaces filesystem-unsafe characters in an entity name with
// underscores, yielding the note's file stem.
func Sanitize(name string) string {
	return unsafeNameRe.ReplaceAllString(name, "_")
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, Sanitize(name)+".md")
}

// Note reads and parses a single note by entity name.
func (s *Store) Note(name string) (*note.ParsedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := note.ParseFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return n, nil
}

// Notes parses every note in the vault, sorted by name.
func (s *Store) Notes() ([]*note.ParsedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return note.ParseDir(s.dir)
}

// List returns the sorted stems of all notes.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stems()
}

func (s *Store) stems() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("vault: read dir: %w", err)
	}
	var stems []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		stems = append(stems, strings.TrimSuffix(name, ".md"))
	}
	sort.Strings(stems)
	return stems, nil
}

// Delete removes a note by entity name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("vault: delete %s: %w", name, err)
	}
	s.gen++
	return nil
}

// Stats summarizes the vault contents.
type Stats struct {
	TotalNotes       int
	ByType           map[string]int
	KnowledgeEntries int
}

var boldEntryCountRe = regexp.MustCompile(`\*\*\[\w+\]`)

// Stats walks the vault and counts notes by type and knowledge-style
// entries (knowledge, episodes, and procedures share the header form).
func (s *Store) Stats() (*Stats, error) {
	notes, err := s.Notes()
	if err != nil {
		return nil, err
	}
	st := &Stats{ByType: make(map[string]int)}
	for _, n := range notes {
		st.TotalNotes++
		t := n.FrontMatter.Type
		if t == "" {
			t = "unknown"
		}
		st.ByType[t]++
		st.KnowledgeEntries += len(boldEntryCountRe.FindAllString(n.Raw, -1))
	}
	return st, nil
}

// writeNote replaces a note file atomically: write to a temp file in the
// same directory, then rename over the target.
func (s *Store) writeNote(path, content string) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("vault: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: rename %s: %w", path, err)
	}
	return nil
}
