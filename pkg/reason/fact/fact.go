// Package fact models the unit of knowledge the reasoning engine works
// over: a named, typed value carrying a confidence weight and provenance.
package fact

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source identifies where a fact came from.
type Source string

const (
	SourceUser     Source = "user"
	SourceDerived  Source = "derived"
	SourceExternal Source = "external"
	SourceSystem   Source = "system"
	SourceUnknown  Source = "unknown"
)

// CombineMethod selects how two confidences are folded together.
type CombineMethod string

const (
	CombineAverage CombineMethod = "average"
	CombineMin     CombineMethod = "min"
	CombineMax     CombineMethod = "max"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a fresh ULID string. Shared by facts and rules for identity.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Fact is one proposition in working memory. Confidence is always kept
// within [0,1]; constraints are advisory and checked only on demand.
type Fact struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Value       Value       `json:"value"`
	Confidence  float64     `json:"confidence"`
	Source      Source      `json:"source"`
	Timestamp   time.Time   `json:"timestamp"`
	DerivedFrom []string    `json:"derivedFrom"`
	Constraints Constraints `json:"constraints"`
}

// New creates a fact with a fresh id and the current time. Confidence is
// clamped to [0,1]; an empty source maps to SourceUnknown.
func New(name string, value Value, source Source, confidence float64, derivedFrom []string) *Fact {
	if source == "" {
		source = SourceUnknown
	}
	return &Fact{
		ID:          NewID(),
		Name:        name,
		Value:       value,
		Confidence:  Clamp(confidence),
		Source:      source,
		Timestamp:   time.Now().UTC(),
		DerivedFrom: append([]string(nil), derivedFrom...),
	}
}

// Clamp forces a confidence into [0,1].
func Clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// UpdateConfidence replaces the fact's confidence, clamping the input.
func (f *Fact) UpdateConfidence(c float64) {
	f.Confidence = Clamp(c)
}

// CombineConfidence folds this fact's confidence with another's without
// mutating either fact. Unrecognized methods fall back to averaging.
func (f *Fact) CombineConfidence(other *Fact, method CombineMethod) float64 {
	a, b := f.Confidence, other.Confidence
	switch method {
	case CombineMin:
		if a < b {
			return a
		}
		return b
	case CombineMax:
		if a > b {
			return a
		}
		return b
	default:
		return Clamp((a + b) / 2)
	}
}

// Derive returns a new fact derived from this one: source becomes
// SourceDerived, the derivation lineage is extended by one entry, and
// constraints carry over. Confidence defaults to the parent's when not
// supplied.
func (f *Fact) Derive(newValue Value, derivationSource string, confidence ...float64) *Fact {
	conf := f.Confidence
	if len(confidence) > 0 {
		conf = confidence[0]
	}
	d := New(f.Name, newValue, SourceDerived, conf, append(append([]string(nil), f.DerivedFrom...), derivationSource))
	d.Constraints = f.Constraints.clone()
	return d
}

// Equal reports whether two facts state the same proposition: same name
// and deeply equal value. This is the dedup key used when merging.
func (f *Fact) Equal(other *Fact) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Name == other.Name && f.Value.Equal(other.Value)
}

// IsExpired reports whether the fact is older than the given window.
// Used by statistics only; inference never consults it.
func (f *Fact) IsExpired(window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return time.Since(f.Timestamp) > window
}

// Constraints is an advisory validation predicate set attached to a
// fact. A fact violating its constraints is still storable; only
// ValidateConstraints reports the failures.
type Constraints struct {
	Type      string   `json:"type,omitempty"` // expected kind: number, string, bool, list, object
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Enum      []Value  `json:"enum,omitempty"`
	Length    *int     `json:"length,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// IsZero reports whether no constraint is configured.
func (c Constraints) IsZero() bool {
	return c.Type == "" && c.Min == nil && c.Max == nil && c.Pattern == "" &&
		len(c.Enum) == 0 && c.Length == nil && c.MinLength == nil && c.MaxLength == nil
}

func (c Constraints) clone() Constraints {
	out := c
	out.Enum = append([]Value(nil), c.Enum...)
	return out
}

// ValidateConstraints checks the fact's value against its constraints
// and returns nil when every configured predicate holds.
func (f *Fact) ValidateConstraints() error {
	c := f.Constraints
	if c.IsZero() {
		return nil
	}
	v := f.Value
	if c.Type != "" && v.Kind().String() != c.Type {
		return fmt.Errorf("constraint type: expected %s, got %s", c.Type, v.Kind())
	}
	if c.Min != nil || c.Max != nil {
		num, ok := v.Number()
		if !ok {
			return fmt.Errorf("constraint min/max: value is %s, not number", v.Kind())
		}
		if c.Min != nil && num < *c.Min {
			return fmt.Errorf("constraint min: %v < %v", num, *c.Min)
		}
		if c.Max != nil && num > *c.Max {
			return fmt.Errorf("constraint max: %v > %v", num, *c.Max)
		}
	}
	if c.Pattern != "" {
		s, ok := v.Str()
		if !ok {
			return fmt.Errorf("constraint pattern: value is %s, not string", v.Kind())
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("constraint pattern: %w", err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("constraint pattern: %q does not match %q", s, c.Pattern)
		}
	}
	if len(c.Enum) > 0 {
		found := false
		for _, allowed := range c.Enum {
			if v.Equal(allowed) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("constraint enum: %s not in allowed set", v)
		}
	}
	if c.Length != nil && v.Len() != *c.Length {
		return fmt.Errorf("constraint length: got %d, want %d", v.Len(), *c.Length)
	}
	if c.MinLength != nil && v.Len() < *c.MinLength {
		return fmt.Errorf("constraint minLength: got %d, want at least %d", v.Len(), *c.MinLength)
	}
	if c.MaxLength != nil && v.Len() > *c.MaxLength {
		return fmt.Errorf("constraint maxLength: got %d, want at most %d", v.Len(), *c.MaxLength)
	}
	return nil
}

// factJSON mirrors Fact for (de)serialization so UnmarshalJSON can
// re-apply construction invariants.
type factJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Value       Value       `json:"value"`
	Confidence  float64     `json:"confidence"`
	Source      Source      `json:"source"`
	Timestamp   time.Time   `json:"timestamp"`
	DerivedFrom []string    `json:"derivedFrom"`
	Constraints Constraints `json:"constraints"`
}

// UnmarshalJSON decodes a fact, clamping confidence and filling defaults
// for missing id, source, and timestamp.
func (f *Fact) UnmarshalJSON(data []byte) error {
	var raw factJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == "" {
		raw.ID = NewID()
	}
	if raw.Source == "" {
		raw.Source = SourceUnknown
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = time.Now().UTC()
	}
	*f = Fact{
		ID:          raw.ID,
		Name:        raw.Name,
		Value:       raw.Value,
		Confidence:  Clamp(raw.Confidence),
		Source:      raw.Source,
		Timestamp:   raw.Timestamp,
		DerivedFrom: raw.DerivedFrom,
		Constraints: raw.Constraints,
	}
	return nil
}

// FromJSON decodes a single fact from JSON.
func FromJSON(data []byte) (*Fact, error) {
	var f Fact
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
