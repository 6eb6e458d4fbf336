// Package reason is the orchestration facade of the reasoning engine:
// it owns the canonical rule and fact collections, dispatches execution
// to the inference strategies, and applies the derived-fact merge
// policy.
//
// A single Engine instance is not safe for concurrent use; callers must
// serialize access.
package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/reason/pkg/reason/config"
	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/infer"
	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
	"github.com/cognicore/reason/pkg/reason/store"
)

// Options configures an Engine.
type Options struct {
	Config config.Config
	Store  store.Store // optional repository consulted at Initialize
	Logger *logrus.Logger
}

// Engine owns the live rule and fact collections. All mutation goes
// through its methods; inference calls read consistent snapshots.
type Engine struct {
	cfg   config.Config
	repo  store.Store
	log   *logrus.Logger
	rules []*rule.Rule
	facts []*fact.Fact
	inf   *infer.Engine

	initialized        bool
	lastExecutedAction string
}

// New creates an engine. Initialize must be called before Execute.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{cfg: cfg, repo: opts.Store, log: log}
}

// Initialize loads rules and facts from the repository when one is
// configured, merges in any extra facts, and binds a fresh inference
// engine to the current rule list.
func (e *Engine) Initialize(ctx context.Context, extraFacts ...*fact.Fact) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	if e.repo != nil {
		rules, err := e.repo.ListRules(ctx)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		e.rules = rules

		facts, err := e.repo.ListFacts(ctx)
		if err != nil {
			return fmt.Errorf("load facts: %w", err)
		}
		e.facts = nil
		for _, f := range facts {
			e.AddFact(f)
		}
	}

	for _, f := range extraFacts {
		e.AddFact(f)
	}

	if err := e.rebind(); err != nil {
		return err
	}
	e.initialized = true
	e.log.WithFields(logrus.Fields{"rules": len(e.rules), "facts": len(e.facts), "mode": e.cfg.Mode}).Info("engine initialized")
	return nil
}

// rebind constructs a fresh inference engine over the current rule list.
func (e *Engine) rebind() error {
	inf, err := infer.New(e.rules, infer.Options{
		MaxIterations: e.cfg.MaxIterations,
		Strategy:      e.cfg.ConflictStrategy,
		Logger:        e.log,
	})
	if err != nil {
		return err
	}
	e.inf = inf
	return nil
}

// AddRule appends a rule to the canonical collection.
func (e *Engine) AddRule(r *rule.Rule) error {
	if r == nil || r.ID == "" {
		return internalerr.ErrInvalidInput
	}
	e.rules = append(e.rules, r)
	if e.initialized {
		return e.rebind()
	}
	return nil
}

// RemoveRule deletes a rule by id.
func (e *Engine) RemoveRule(id string) error {
	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			if e.initialized {
				return e.rebind()
			}
			return nil
		}
	}
	return internalerr.ErrNotFound
}

// UpdateRule applies a mutation to the rule with the given id and bumps
// its modification timestamp.
func (e *Engine) UpdateRule(id string, mutate func(*rule.Rule)) error {
	for _, r := range e.rules {
		if r.ID == id {
			mutate(r)
			r.Touch()
			return nil
		}
	}
	return internalerr.ErrNotFound
}

// AddFact merges a fact into the canonical collection. When a fact with
// the same name exists it is replaced only if the incoming confidence is
// strictly higher; otherwise the existing fact is kept. New names append.
func (e *Engine) AddFact(f *fact.Fact) {
	if f == nil {
		return
	}
	for i, existing := range e.facts {
		if existing.Name == f.Name {
			if f.Confidence > existing.Confidence {
				e.facts[i] = f
			}
			return
		}
	}
	e.facts = append(e.facts, f)
}

// RemoveFact deletes all facts with the given name.
func (e *Engine) RemoveFact(name string) error {
	kept := e.facts[:0]
	removed := false
	for _, f := range e.facts {
		if f.Name == name {
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	e.facts = kept
	if !removed {
		return internalerr.ErrNotFound
	}
	return nil
}

// Rules returns a copy of the rule list.
func (e *Engine) Rules() []*rule.Rule {
	return append([]*rule.Rule(nil), e.rules...)
}

// Facts returns a copy of the fact list.
func (e *Engine) Facts() []*fact.Fact {
	return append([]*fact.Fact(nil), e.facts...)
}

// LastExecutedAction returns the action target of the rule applied last
// by the most recent Execute call, or "" when nothing has fired yet.
func (e *Engine) LastExecutedAction() string {
	return e.lastExecutedAction
}

// Result is what one Execute call produced.
type Result struct {
	Mode               string       `json:"mode"`
	Applied            []string     `json:"appliedRules"`
	Derived            []*fact.Fact `json:"derivedFacts"`
	Confidence         float64      `json:"confidence"`
	Trace              []string     `json:"trace"`
	Errors             []string     `json:"errors"`
	LastExecutedAction string       `json:"lastExecutedAction"`
}

// Execute runs inference in the configured mode. Backward and hybrid
// modes require an explicit goal; guessing one from the rule list is not
// supported. Derived facts are merged back into the permanent store
// under the usual confidence-gated policy.
func (e *Engine) Execute(ctx context.Context, goal ...infer.Goal) (*Result, error) {
	if !e.initialized {
		return nil, internalerr.ErrNotInitialized
	}

	var g *infer.Goal
	if len(goal) > 0 {
		g = &goal[0]
	}

	var run infer.Result
	var err error
	switch e.cfg.Mode {
	case config.ModeForward:
		run, err = e.inf.Forward(ctx, e.facts)
	case config.ModeBackward:
		if g == nil {
			return nil, internalerr.ErrNoGoal
		}
		run, err = e.inf.Backward(ctx, e.facts, *g)
	case config.ModeHybrid:
		if g == nil {
			return nil, internalerr.ErrNoGoal
		}
		run, err = e.hybrid(ctx, *g)
	default:
		return nil, fmt.Errorf("%w: %q", internalerr.ErrUnknownMode, e.cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	for _, f := range run.Derived {
		e.AddFact(f)
	}
	if len(run.Applied) > 0 {
		if r := e.ruleByID(run.Applied[len(run.Applied)-1]); r != nil {
			e.lastExecutedAction = r.Action.Target
		}
	}

	return &Result{
		Mode:               e.cfg.Mode,
		Applied:            run.Applied,
		Derived:            run.Derived,
		Confidence:         run.Confidence,
		Trace:              run.Trace,
		Errors:             run.Errors,
		LastExecutedAction: e.lastExecutedAction,
	}, nil
}

// hybrid chains forward first, then proves the goal backward over the
// expanded fact set unless forward chaining already satisfied it.
func (e *Engine) hybrid(ctx context.Context, g infer.Goal) (infer.Result, error) {
	forward, err := e.inf.Forward(ctx, e.facts)
	if err != nil {
		return forward, err
	}

	merged := append(e.Facts(), forward.Derived...)
	if goalSatisfied(merged, g) {
		forward.Trace = append(forward.Trace, fmt.Sprintf("goal %s satisfied by forward chaining", g.Name))
		return forward, nil
	}

	backward, err := e.inf.Backward(ctx, merged, g)
	if err != nil {
		return forward, err
	}

	combined := infer.Result{
		Derived:    append(forward.Derived, backward.Derived...),
		Applied:    append(forward.Applied, backward.Applied...),
		Trace:      append(forward.Trace, backward.Trace...),
		Errors:     append(forward.Errors, backward.Errors...),
		Confidence: backward.Confidence,
	}
	return combined, nil
}

func goalSatisfied(facts []*fact.Fact, g infer.Goal) bool {
	for _, f := range facts {
		if f.Name != g.Name {
			continue
		}
		if g.Value == nil || f.Value.Equal(*g.Value) {
			return true
		}
	}
	return false
}

func (e *Engine) ruleByID(id string) *rule.Rule {
	for _, r := range e.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Reset clears all facts but keeps rules. The engine stays initialized.
func (e *Engine) Reset() {
	e.facts = nil
	e.lastExecutedAction = ""
}

// Clear empties the engine entirely; Initialize must be called again
// before the next Execute.
func (e *Engine) Clear() {
	e.facts = nil
	e.rules = nil
	e.inf = nil
	e.initialized = false
	e.lastExecutedAction = ""
}

// engineState is the export/import serialization contract.
type engineState struct {
	Rules     []*rule.Rule  `json:"rules"`
	Facts     []*fact.Fact  `json:"facts"`
	Config    config.Config `json:"config"`
	Timestamp time.Time     `json:"timestamp"`
}

// ExportState serializes rules, facts, and configuration.
func (e *Engine) ExportState() ([]byte, error) {
	return json.Marshal(engineState{
		Rules:     e.rules,
		Facts:     e.facts,
		Config:    e.cfg,
		Timestamp: time.Now().UTC(),
	})
}

// ImportState reconstructs an equivalent engine from an exported state
// and leaves it initialized.
func (e *Engine) ImportState(data []byte) error {
	var state engineState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := state.Config.Validate(); err != nil {
		return err
	}
	e.cfg = state.Config
	e.rules = state.Rules
	e.facts = nil
	for _, f := range state.Facts {
		e.AddFact(f)
	}
	if err := e.rebind(); err != nil {
		return err
	}
	e.initialized = true
	e.lastExecutedAction = ""
	return nil
}

// Save writes the current rules and facts to the repository, if any.
func (e *Engine) Save(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	for _, r := range e.rules {
		if err := e.repo.SaveRule(ctx, r); err != nil {
			return fmt.Errorf("save rule %s: %w", r.ID, err)
		}
	}
	for _, f := range e.facts {
		if err := e.repo.SaveFact(ctx, f); err != nil {
			return fmt.Errorf("save fact %s: %w", f.ID, err)
		}
	}
	return nil
}

// Stats summarizes the engine's current knowledge.
type Stats struct {
	Facts         int                 `json:"facts"`
	FactsBySource map[fact.Source]int `json:"factsBySource"`
	StaleFacts    int                 `json:"staleFacts"`
	Rules         int                 `json:"rules"`
	EnabledRules  int                 `json:"enabledRules"`
}

// Stats computes fact and rule counts. Staleness uses the configured
// window and never affects inference.
func (e *Engine) Stats() Stats {
	s := Stats{
		Facts:         len(e.facts),
		FactsBySource: make(map[fact.Source]int),
		Rules:         len(e.rules),
	}
	window := e.cfg.StaleAfter()
	for _, f := range e.facts {
		s.FactsBySource[f.Source]++
		if f.IsExpired(window) {
			s.StaleFacts++
		}
	}
	for _, r := range e.rules {
		if r.Enabled {
			s.EnabledRules++
		}
	}
	return s
}
