package rules

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/tinyland-inc/forwardbot/pkg/logger"
	"github.com/tinyland-inc/forwardbot/pkg/utils"
)

// Snapshot is the full source -> ordered rules mapping as written to storage.
type Snapshot map[string][]Rule

// Persister reads and fully rewrites the durable representation of a Snapshot.
type Persister interface {
	// Load returns the stored snapshot. A missing store yields an empty
	// snapshot and no error; unparseable data yields ErrStorageCorrupt.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the stored snapshot with s.
	Save(ctx context.Context, s Snapshot) error
	Close() error
}

// Store is the process-wide rule registry.
//
// Readers take mu for reading only. Writers are serialized by writeMu and
// persist a copy of the next state before publishing it under mu, so a
// reader sees either the old or the new list for a source.
type Store struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex
	rules     Snapshot
	persister Persister
}

func NewStore(p Persister) *Store {
	return &Store{
		rules:     make(Snapshot),
		persister: p,
	}
}

// Load replaces the in-memory rules with the persisted snapshot. When the
// snapshot cannot be parsed the store stays empty and the returned error
// wraps ErrStorageCorrupt.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.persister.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.rules = make(Snapshot)
		s.mu.Unlock()
		if errors.Is(err, ErrStorageCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}

	normalized := make(Snapshot, len(snap))
	for key, list := range snap {
		source := key
		if canonical, err := utils.CanonicalChatID(key); err == nil {
			source = canonical
		}
		out := normalized[source]
		for _, r := range list {
			r.Source = source
			out = append(out, r)
		}
		normalized[source] = out
	}

	s.mu.Lock()
	s.rules = normalized
	s.mu.Unlock()

	logger.InfoCF("rules", "Rules loaded", map[string]any{
		"sources": len(normalized),
		"rules":   countRules(normalized),
	})
	return nil
}

// AppendRule validates and appends a rule for source, then persists the whole
// store. On a failed write the in-memory state is left as it was.
func (s *Store) AppendRule(ctx context.Context, source, destination, keyword string) (Rule, error) {
	rule, err := NewRule(source, destination, keyword)
	if err != nil {
		return Rule{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := maps.Clone(s.rules)
	s.mu.RUnlock()

	list := make([]Rule, 0, len(next[rule.Source])+1)
	list = append(list, next[rule.Source]...)
	list = append(list, rule)
	next[rule.Source] = list

	if err := s.persister.Save(ctx, next); err != nil {
		logger.ErrorCF("rules", "Failed to persist rules", map[string]any{
			"source": rule.Source,
			"error":  err.Error(),
		})
		return Rule{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	s.mu.Lock()
	s.rules[rule.Source] = list
	s.mu.Unlock()

	logger.InfoCF("rules", "Rule created", map[string]any{
		"source":      rule.Source,
		"destination": rule.Destination,
		"keyword":     rule.Keyword,
	})
	return rule, nil
}

// RulesFor returns the rules for source in creation order. The returned
// slice is a copy.
func (s *Store) RulesFor(source string) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules[source])
}

// Sources returns all sources that have at least one rule, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.rules))
	for source, list := range s.rules {
		if len(list) > 0 {
			out = append(out, source)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the whole mapping.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.rules))
	for source, list := range s.rules {
		out[source] = slices.Clone(list)
	}
	return out
}

func (s *Store) Close() error {
	return s.persister.Close()
}

func countRules(snap Snapshot) int {
	n := 0
	for _, list := range snap {
		n += len(list)
	}
	return n
}
