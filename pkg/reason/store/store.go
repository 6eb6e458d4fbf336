// Package store defines the persistence interface for rules and facts.
// Repositories are optional: an engine without one simply starts empty.
package store

import (
	"context"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// Store persists rules and facts between engine runs. The engine
// consults it only at initialization and on explicit save calls; it
// never reads through during inference.
type Store interface {
	Close() error

	// Rules
	ListRules(ctx context.Context) ([]*rule.Rule, error)
	SaveRule(ctx context.Context, r *rule.Rule) error
	DeleteRule(ctx context.Context, id string) error

	// Facts
	ListFacts(ctx context.Context) ([]*fact.Fact, error)
	SaveFact(ctx context.Context, f *fact.Fact) error
	DeleteFact(ctx context.Context, id string) error
}
