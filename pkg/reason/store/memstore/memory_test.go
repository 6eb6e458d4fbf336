package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
)

func TestRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := rule.FromStrings("first", "true", "a")
	second := rule.FromStrings("second", "true", "b")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	if err := s.SaveRule(ctx, second); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if err := s.SaveRule(ctx, first); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	rules, err := s.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 2 || rules[0].ID != first.ID || rules[1].ID != second.ID {
		t.Errorf("rules not ordered by creation time: %v, %v", rules[0].Name, rules[1].Name)
	}

	// saving under the same id replaces
	first.Priority = 9
	if err := s.SaveRule(ctx, first); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	rules, _ = s.ListRules(ctx)
	if len(rules) != 2 || rules[0].Priority != 9 {
		t.Errorf("upsert did not replace: %+v", rules[0])
	}

	if err := s.DeleteRule(ctx, first.ID); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if err := s.DeleteRule(ctx, first.ID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("deleting a missing rule: err = %v, want ErrNotFound", err)
	}
}

func TestFactLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	f := fact.New("temperature", fact.Number(95), fact.SourceUser, 0.8, nil)
	if err := s.SaveFact(ctx, f); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}

	facts, err := s.ListFacts(ctx)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(facts) != 1 || facts[0].ID != f.ID || facts[0].Confidence != 0.8 {
		t.Errorf("stored fact = %+v", facts[0])
	}

	// the store holds copies, not the caller's pointers
	f.Confidence = 0.1
	facts, _ = s.ListFacts(ctx)
	if facts[0].Confidence != 0.8 {
		t.Error("store shares fact memory with the caller")
	}

	if err := s.DeleteFact(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFact: %v", err)
	}
	if err := s.DeleteFact(ctx, f.ID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("deleting a missing fact: err = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.SaveRule(ctx, nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("nil rule: err = %v", err)
	}
	if err := s.SaveFact(ctx, &fact.Fact{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("fact without id: err = %v", err)
	}
}
