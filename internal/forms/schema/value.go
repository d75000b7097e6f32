package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"prequal/internal/forms/variant"
)

// Kind discriminates the runtime representation of a field value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindChoice
)

// Value is one typed field value. The zero Value is blank.
//
// Dates travel as text in ISO form and are validated against the field
// definition; numbers are decimals end to end so money survives round trips.
type Value struct {
	kind   Kind
	text   string
	number decimal.Decimal
	choice variant.Value
}

func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, number: d} }

func Int(n int64) Value { return Number(decimal.NewFromInt(n)) }

func Choice(v variant.Value) Value {
	if v.IsZero() {
		return Value{}
	}
	return Value{kind: KindChoice, choice: v}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Text returns the textual form of the value regardless of kind.
func (v Value) Text() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number.String()
	case KindChoice:
		return v.choice.Name
	default:
		return ""
	}
}

// Number returns the decimal payload; ok is false for non-numeric values.
func (v Value) Number() (decimal.Decimal, bool) {
	if v.kind != KindNumber {
		return decimal.Decimal{}, false
	}
	return v.number, true
}

// NumberRef is Number as a nullable pointer, matching calculator signatures.
func (v Value) NumberRef() *decimal.Decimal {
	if v.kind != KindNumber {
		return nil
	}
	d := v.number
	return &d
}

// Choice returns the categorical payload; ok is false otherwise.
func (v Value) Choice() (variant.Value, bool) {
	if v.kind != KindChoice {
		return variant.Value{}, false
	}
	return v.choice, true
}

// Equal compares values semantically: numbers by decimal equality, choices by
// underlying string (the variant tag never participates), text byte-wise.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNumber && other.kind == KindNumber {
		return v.number.Equal(other.number)
	}
	if v.kind != other.kind {
		// A choice equals the bare text it carries; this keeps equality
		// stable when a template entry appears after a custom value.
		if (v.kind == KindChoice && other.kind == KindText) ||
			(v.kind == KindText && other.kind == KindChoice) {
			return v.Text() == other.Text()
		}
		return v.kind == KindEmpty && other.kind == KindEmpty
	}
	return v.Text() == other.Text()
}

// MarshalJSON emits the natural JSON shape: null, string, number, or the
// tagged variant object.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindEmpty:
		return []byte("null"), nil
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		// Raw decimal literal, not a float64 round trip.
		return []byte(v.number.String()), nil
	case KindChoice:
		return json.Marshal(v.choice)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON accepts null, strings, numbers, and tagged variant objects.
// Choice classification happens later, against the field definition.
func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = Text(t)
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		*v = Number(d)
	case map[string]any:
		var cv variant.Value
		if err := json.Unmarshal(b, &cv); err != nil {
			return err
		}
		*v = Choice(cv)
	case bool:
		return fmt.Errorf("boolean field values are not supported")
	default:
		return fmt.Errorf("unsupported field value %s", string(b))
	}
	return nil
}

// Fields is the field map of one record.
type Fields map[string]Value

// Clone copies the map so optimistic edits never alias confirmed state.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Get is a nil-safe lookup: a missing key is a blank value.
func (f Fields) Get(name string) Value {
	if f == nil {
		return Value{}
	}
	return f[name]
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
