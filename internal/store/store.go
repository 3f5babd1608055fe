// Package store owns the version log: an append-only, oldest-first list of
// content snapshots, each carrying its word diff against the one before.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pbaille/audit/internal/domain"
	"github.com/pbaille/audit/internal/logger"
	"github.com/pbaille/audit/internal/metrics"
	"github.com/pbaille/audit/internal/worddiff"
)

// Store mediates every read and append of the version log. Reads and
// appends hold a single mutex; the backend additionally locks the storage
// itself during an append, so the baseline of an append is the record
// committed last even when other processes write the same log.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l.Component("store") }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides version id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store on top of an opened backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		log:     logger.Nop(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates the backend named kind ("jsonfile" or "sqlite") at path and
// wraps it in a Store.
func Open(kind, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var (
		b   Backend
		err error
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "jsonfile":
		b, err = NewJSONFile(path)
	case "sqlite":
		b, err = NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
	if err != nil {
		return nil, err
	}

	return New(b, opts...), nil
}

// Close releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// Backend returns the name of the storage backend.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Ping checks the backend. It does not take the store mutex, so health
// checks are not queued behind appends.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// LoadAll returns the full log, oldest first. It never fails: missing,
// empty or unreadable storage all read as an empty log. Failures are
// logged and counted.
func (s *Store) LoadAll(ctx context.Context) []domain.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	versions, err := s.backend.Load(ctx)
	s.observe("load", start, len(versions), err)

	if err != nil {
		if errors.Is(err, domain.ErrStorageCorrupt) && s.metrics != nil {
			s.metrics.CorruptReadsTotal.Inc()
		}
		return []domain.Version{}
	}

	return normalize(versions)
}

// AppendVersion records content as the newest version and returns it.
//
// Content that is not valid UTF-8 is rejected with domain.ErrInvalidInput.
// Write failures wrap domain.ErrPersistence and leave the stored log as it
// was. An unreadable log is never overwritten: when the backend cannot
// decode the record to diff against, the append fails with both
// domain.ErrPersistence and domain.ErrStorageCorrupt.
func (s *Store) AppendVersion(ctx context.Context, content string) (domain.Version, error) {
	if !utf8.ValidString(content) {
		return domain.Version{}, fmt.Errorf("%w: content is not valid UTF-8 text", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	v, n, err := s.backend.Append(ctx, func(last *domain.Version) domain.Version {
		previous := ""
		if last != nil {
			previous = last.Content
		}

		diff := worddiff.Diff(previous, content)
		return domain.Version{
			ID:           s.newID(),
			Timestamp:    s.now().UTC(),
			Content:      content,
			OldLength:    utf8.RuneCountInString(previous),
			NewLength:    utf8.RuneCountInString(content),
			AddedWords:   diff.Added,
			RemovedWords: diff.Removed,
		}
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		s.observe("append", start, 0, err)
		return domain.Version{}, err
	}

	s.observe("append", start, n, nil)
	if s.metrics != nil {
		s.metrics.RecordAppend(n, len(v.AddedWords), len(v.RemovedWords))
	}
	s.log.Info().
		Str("id", v.ID).
		Int("old_length", v.OldLength).
		Int("new_length", v.NewLength).
		Int("added", len(v.AddedWords)).
		Int("removed", len(v.RemovedWords)).
		Msg("version saved")

	return v, nil
}

// Get returns the version whose id equals id or, failing that, the single
// version whose id starts with id.
func (s *Store) Get(ctx context.Context, id string) (domain.Version, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Version{}, fmt.Errorf("version %q: %w", id, domain.ErrNotFound)
	}

	versions := s.LoadAll(ctx)

	var matches []domain.Version
	for _, v := range versions {
		if v.ID == id {
			return v, nil
		}
		if strings.HasPrefix(v.ID, id) {
			matches = append(matches, v)
		}
	}

	switch len(matches) {
	case 0:
		return domain.Version{}, fmt.Errorf("version %q: %w", id, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return domain.Version{}, fmt.Errorf("%w: id prefix %q matches %d versions", domain.ErrInvalidInput, id, len(matches))
	}
}

func (s *Store) observe(op string, start time.Time, n int, err error) {
	d := time.Since(start)
	s.log.LogStoreOperation(op, d, n, err)
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(op, err, d)
	}
}

// normalize replaces null word lists from older or hand-edited files with
// empty ones so every record serializes with arrays.
func normalize(versions []domain.Version) []domain.Version {
	for i := range versions {
		if versions[i].AddedWords == nil {
			versions[i].AddedWords = []string{}
		}
		if versions[i].RemovedWords == nil {
			versions[i].RemovedWords = []string{}
		}
	}
	return versions
}
