package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Mode != ModeForward || cfg.MaxIterations != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.StaleAfter() != time.Hour {
		t.Errorf("StaleAfter = %v, want 1h", cfg.StaleAfter())
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Mode = "psychic"
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrUnknownMode) {
		t.Errorf("bad mode: err = %v, want ErrUnknownMode", err)
	}

	cfg = Default()
	cfg.MaxIterations = 0
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("zero iterations: err = %v, want ErrInvalidConfig", err)
	}

	cfg = Default()
	cfg.StaleAfterMinutes = -1
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("negative staleness: err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "mode: backward\nmax_iterations: 10\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeBackward || cfg.MaxIterations != 10 {
		t.Errorf("explicit values lost: %+v", cfg)
	}
	if cfg.ConflictStrategy != "priority" || cfg.StaleAfterMinutes != 60 {
		t.Errorf("unspecified values should keep defaults: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "config.yaml", "mode: sideways\n")
	if _, err := Load(path); err == nil {
		t.Error("invalid mode should fail Load")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail Load")
	}
}

func TestLoadRulesShorthand(t *testing.T) {
	path := writeFile(t, "rules.yaml", `rules:
  - name: temperature-alert
    condition: temperature > 90
    action: alert
    priority: 2
  - name: structured
    condition:
      type: nlp
      patterns:
        - refund
    action:
      type: function
      target: set
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules", len(rules))
	}
	if rules[0].Condition.Type != rule.ConditionSimple || rules[0].Condition.Expression != "temperature > 90" {
		t.Errorf("bare condition not normalized: %+v", rules[0].Condition)
	}
	if rules[0].Action.Type != rule.ActionResponse || rules[0].Action.Target != "alert" {
		t.Errorf("bare action not normalized: %+v", rules[0].Action)
	}
	if rules[0].Priority != 2 || rules[0].ID == "" || !rules[0].Enabled {
		t.Errorf("defaults not applied: %+v", rules[0])
	}
	if rules[1].Condition.Type != rule.ConditionNLP || len(rules[1].Condition.Patterns) != 1 {
		t.Errorf("structured condition lost: %+v", rules[1].Condition)
	}
}

func TestLoadFacts(t *testing.T) {
	path := writeFile(t, "facts.yaml", `facts:
  - name: temperature
    value: 100
    confidence: 1.0
    source: user
  - name: tags
    value:
      - a
      - b
`)
	facts, err := LoadFacts(path)
	if err != nil {
		t.Fatalf("LoadFacts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("got %d facts", len(facts))
	}
	if n, ok := facts[0].Value.Number(); !ok || n != 100 {
		t.Errorf("value = %s", facts[0].Value)
	}
	if facts[0].ID == "" || facts[0].Timestamp.IsZero() {
		t.Errorf("defaults not applied: %+v", facts[0])
	}
	if list, ok := facts[1].Value.List(); !ok || len(list) != 2 {
		t.Errorf("list value lost: %s", facts[1].Value)
	}
}

func TestSaveRulesRoundTrip(t *testing.T) {
	orig := []*rule.Rule{
		rule.FromStrings("overheat", "temperature > 90", "alert"),
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := SaveRules(path, orig); err != nil {
		t.Fatalf("SaveRules: %v", err)
	}
	back, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(back) != 1 || back[0].ID != orig[0].ID || back[0].Condition.Expression != "temperature > 90" {
		t.Errorf("round trip lost data: %+v", back)
	}
}

func TestLoaderSkipsEmptyPaths(t *testing.T) {
	l := &Loader{}
	comp, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Config != Default() {
		t.Errorf("empty loader should yield defaults: %+v", comp.Config)
	}
	if len(comp.Rules) != 0 || len(comp.Facts) != 0 {
		t.Errorf("empty loader should yield no documents")
	}
}
