package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// Loader reads all configuration files for one engine instance. Empty
// paths are skipped.
type Loader struct {
	ConfigPath string
	RulesPath  string
	FactsPath  string
}

// Components holds everything a loaded engine starts from.
type Components struct {
	Config Config
	Rules  []*rule.Rule
	Facts  []*fact.Fact
}

// Load reads the configured files and returns initialized components.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{Config: Default()}

	if l.ConfigPath != "" {
		cfg, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	}

	if l.RulesPath != "" {
		rules, err := LoadRules(l.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		comp.Rules = rules
	}

	if l.FactsPath != "" {
		facts, err := LoadFacts(l.FactsPath)
		if err != nil {
			return nil, fmt.Errorf("load facts: %w", err)
		}
		comp.Facts = facts
	}

	return comp, nil
}

// LoadRules reads a YAML rule document:
//
//	rules:
//	  - name: temperature-alert
//	    condition: temperature > 90
//	    action: alert
//	    priority: 2
//
// Conditions and actions may be bare strings (normalized to simple
// conditions and response actions) or full objects.
func LoadRules(path string) ([]*rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Rules []interface{} `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	rules := make([]*rule.Rule, 0, len(doc.Rules))
	for i, raw := range doc.Rules {
		r, err := decodeRule(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadFacts reads a YAML fact document:
//
//	facts:
//	  - name: temperature
//	    value: 100
//	    confidence: 1.0
//	    source: user
func LoadFacts(path string) ([]*fact.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Facts []interface{} `yaml:"facts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}
	facts := make([]*fact.Fact, 0, len(doc.Facts))
	for i, raw := range doc.Facts {
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("fact %d: %w", i+1, err)
		}
		f, err := fact.FromJSON(buf)
		if err != nil {
			return nil, fmt.Errorf("fact %d: %w", i+1, err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// decodeRule funnels the YAML object model through the rule JSON codec
// so the same normalization applies to files and to wire payloads.
func decodeRule(raw interface{}) (*rule.Rule, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return rule.FromJSON(buf)
}

// SaveRules writes rules back out as a YAML rule document.
func SaveRules(path string, rules []*rule.Rule) error {
	docs := make([]interface{}, 0, len(rules))
	for _, r := range rules {
		buf, err := json.Marshal(r)
		if err != nil {
			return err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(buf, &m); err != nil {
			return err
		}
		docs = append(docs, m)
	}
	out, err := yaml.Marshal(map[string]interface{}{"rules": docs})
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
