// Package variant implements the template-or-custom value pattern used by
// categorical fields (positions, crafts, equipment types).
//
// A value is either drawn from a predefined template set or supplied as free
// text. The tag only decides which editing control the client shows; equality
// and validation always go through the underlying string, so a custom value
// that later gains a matching template entry still reads back as the same
// logical value.
package variant

import (
	"encoding/json"
	"strings"
)

// Value is a tagged categorical value.
type Value struct {
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// TemplateSet is a fixed list of known entries for one categorical field.
type TemplateSet struct {
	names map[string]string // lowercased -> canonical
}

// NewTemplateSet builds a set from canonical entry names. Matching is
// case-insensitive but the canonical spelling is preserved on resolution.
func NewTemplateSet(names []string) TemplateSet {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[strings.ToLower(strings.TrimSpace(n))] = n
	}
	return TemplateSet{names: m}
}

// Contains reports whether raw matches a template entry.
func (s TemplateSet) Contains(raw string) bool {
	_, ok := s.names[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// Resolve classifies raw input. A match yields the canonical template
// spelling; anything else is accepted verbatim as a custom value. Resolution
// never fails: any string is a valid custom value.
func (s TemplateSet) Resolve(raw string) Value {
	raw = strings.TrimSpace(raw)
	if canonical, ok := s.names[strings.ToLower(raw)]; ok {
		return Value{Name: canonical}
	}
	return Value{Name: raw, Custom: true}
}

// Equal compares by underlying string only. The tag never participates.
func (v Value) Equal(other Value) bool { return v.Name == other.Name }

func (v Value) String() string { return v.Name }

func (v Value) IsZero() bool { return v.Name == "" }

// UnmarshalJSON accepts both the tagged object form and a bare string, so
// clients can send `"Bridge Painter"` and let the server classify it.
func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v.Name = s
		v.Custom = false
		return nil
	}
	type alias Value
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*v = Value(a)
	return nil
}
