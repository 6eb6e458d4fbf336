// Package memstore provides an in-memory store.Store, used by tests and
// as the default when no persistence is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu    sync.RWMutex
	rules map[string]*rule.Rule
	facts map[string]*fact.Fact
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rules: make(map[string]*rule.Rule),
		facts: make(map[string]*fact.Fact),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// ListRules returns all rules ordered by creation time, then id.
func (s *Store) ListRules(ctx context.Context) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		dup := *r
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveRule inserts or replaces a rule by id.
func (s *Store) SaveRule(ctx context.Context, r *rule.Rule) error {
	if r == nil || r.ID == "" {
		return internalerr.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *r
	s.rules[r.ID] = &dup
	return nil
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return internalerr.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// ListFacts returns all facts ordered by timestamp, then id.
func (s *Store) ListFacts(ctx context.Context) ([]*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*fact.Fact, 0, len(s.facts))
	for _, f := range s.facts {
		dup := *f
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveFact inserts or replaces a fact by id.
func (s *Store) SaveFact(ctx context.Context, f *fact.Fact) error {
	if f == nil || f.ID == "" {
		return internalerr.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *f
	s.facts[f.ID] = &dup
	return nil
}

// DeleteFact removes a fact by id.
func (s *Store) DeleteFact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facts[id]; !ok {
		return internalerr.ErrNotFound
	}
	delete(s.facts, id)
	return nil
}
