package infer

import (
	"fmt"
	"sort"

	"github.com/cognicore/reason/pkg/reason/rule"
)

// Strategy resolves conflicts between simultaneously applicable rules.
// Select orders the candidates; Exclusive reports whether at most one of
// them may fire within a single forward-chaining iteration.
type Strategy interface {
	Name() string
	Select(applicable []*rule.Rule) []*rule.Rule
	Exclusive() bool
}

// StrategyByName looks up a registered conflict-resolution strategy.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", StrategyPriority:
		return priorityStrategy{}, nil
	case StrategyAll:
		return allStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q", name)
	}
}

// Registered strategy names.
const (
	StrategyPriority = "priority"
	StrategyAll      = "all"
)

func orderByPriority(applicable []*rule.Rule) []*rule.Rule {
	ordered := append([]*rule.Rule(nil), applicable...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Confidence > ordered[j].Confidence
	})
	return ordered
}

// priorityStrategy fires a single rule per iteration: highest priority
// wins, confidence breaks ties. This is the default.
type priorityStrategy struct{}

func (priorityStrategy) Name() string    { return StrategyPriority }
func (priorityStrategy) Exclusive() bool { return true }

func (priorityStrategy) Select(applicable []*rule.Rule) []*rule.Rule {
	return orderByPriority(applicable)
}

// allStrategy fires every applicable rule, in priority order.
type allStrategy struct{}

func (allStrategy) Name() string    { return StrategyAll }
func (allStrategy) Exclusive() bool { return false }

func (allStrategy) Select(applicable []*rule.Rule) []*rule.Rule {
	return orderByPriority(applicable)
}
