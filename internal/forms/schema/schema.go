// Package schema declares the per-form schemas that drive the record-editing
// engine: field lists, validation rules, derived-field functions and
// child-record families. One engine, eight schemas: the forms are
// structurally analogous and differ only in this data.
package schema

import (
	"fmt"

	"github.com/shopspring/decimal"

	"prequal/internal/forms/derived"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
)

// FieldType is the declared type of a form field.
type FieldType int

const (
	TypeText FieldType = iota
	TypeDate
	TypeDecimal
	TypeInt
	// TypeEnum restricts the value to a fixed list with no custom fallback.
	TypeEnum
	// TypeTemplateChoice resolves against a template set, falling back to a
	// custom variant for unmatched input.
	TypeTemplateChoice
)

// TemplateKind names a template set supplied by the template store.
type TemplateKind string

const (
	TemplatePositions      TemplateKind = "positions"
	TemplateCrafts         TemplateKind = "crafts"
	TemplateEquipmentTypes TemplateKind = "equipment_types"
)

// FieldDef declares one field of a record or child record.
type FieldDef struct {
	Name     string
	Type     FieldType
	Required bool
	// Enum lists the allowed values for TypeEnum fields.
	Enum []string
	// Templates names the template set for TypeTemplateChoice fields.
	Templates TemplateKind
	// Min/Max bound numeric fields inclusively.
	Min, Max *decimal.Decimal
	// HighStaleness marks fields whose failed autosave must trigger a full
	// reload instead of a local revert (derived inputs, uniqueness keys).
	HighStaleness bool
}

// DerivedDef declares a dependent field recomputed on any edit to its inputs.
type DerivedDef struct {
	Target       string
	ValueInput   string
	PercentInput string
}

// Recompute applies the derived rule to a field map in place. The target is
// blanked when either input is absent.
func (d DerivedDef) Recompute(fields Fields) {
	out, ok := derived.CompletedValue(
		fields.Get(d.ValueInput).NumberRef(),
		fields.Get(d.PercentInput).NumberRef(),
	)
	if !ok {
		fields[d.Target] = Value{}
		return
	}
	fields[d.Target] = Number(out)
}

// ChildDef declares a nested record family (one level deep, never further).
type ChildDef struct {
	Name   string
	Fields []FieldDef
}

// Precondition selects the submit rule for a form.
type Precondition int

const (
	// RequireRecords demands at least one record before submit.
	RequireRecords Precondition = iota
	// RequireAllQuestionsAnswered demands a non-empty answer for every
	// active question the project defines.
	RequireAllQuestionsAnswered
)

// FormDef is the full schema of one form.
type FormDef struct {
	Number       id.FormNumber
	Slug         string
	RecordName   string
	Fields       []FieldDef
	Children     []ChildDef
	Derived      []DerivedDef
	Precondition Precondition
	// UniqueField, when set, names a field whose value must be unique across
	// the form's records (e.g. one profile per ongoing project).
	UniqueField string
	// SingletonDocTypes lists document types allowed at most once per record.
	SingletonDocTypes []string
}

// Field returns the definition for a named field.
func (f *FormDef) Field(name string) (FieldDef, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return FieldDef{}, false
}

// Child returns the named child family definition.
func (f *FormDef) Child(name string) (ChildDef, bool) {
	for _, cd := range f.Children {
		if cd.Name == name {
			return cd, true
		}
	}
	return ChildDef{}, false
}

// DerivedFor returns the derived rules touched by an edit to field name.
func (f *FormDef) DerivedFor(name string) []DerivedDef {
	var out []DerivedDef
	for _, d := range f.Derived {
		if d.ValueInput == name || d.PercentInput == name {
			out = append(out, d)
		}
	}
	return out
}

// IsSingletonDocType reports whether documents of this type are one-per-record.
func (f *FormDef) IsSingletonDocType(docType string) bool {
	for _, t := range f.SingletonDocTypes {
		if t == docType {
			return true
		}
	}
	return false
}

// ValidateField checks a single value against its definition. Template
// choice classification happens in the service, where the template set is
// available; here the value only needs to be textual or already tagged.
func ValidateField(def FieldDef, v Value) error {
	if v.IsEmpty() {
		if def.Required {
			return derrors.NewValidation(fmt.Sprintf("%s is required", def.Name), def.Name)
		}
		return nil
	}
	switch def.Type {
	case TypeText:
		if v.Kind() != KindText {
			return derrors.NewValidation(fmt.Sprintf("%s must be text", def.Name), def.Name)
		}
	case TypeDate:
		if v.Kind() != KindText {
			return derrors.NewValidation(fmt.Sprintf("%s must be a date string", def.Name), def.Name)
		}
		if _, err := parseDate(v.Text()); err != nil {
			return derrors.NewValidation(fmt.Sprintf("%s: %v", def.Name, err), def.Name)
		}
	case TypeDecimal, TypeInt:
		n, ok := v.Number()
		if !ok {
			return derrors.NewValidation(fmt.Sprintf("%s must be numeric", def.Name), def.Name)
		}
		if def.Type == TypeInt && !n.IsInteger() {
			return derrors.NewValidation(fmt.Sprintf("%s must be a whole number", def.Name), def.Name)
		}
		if def.Min != nil && n.LessThan(*def.Min) {
			return derrors.NewValidation(fmt.Sprintf("%s must be at least %s", def.Name, def.Min), def.Name)
		}
		if def.Max != nil && n.GreaterThan(*def.Max) {
			return derrors.NewValidation(fmt.Sprintf("%s must be at most %s", def.Name, def.Max), def.Name)
		}
	case TypeEnum:
		for _, allowed := range def.Enum {
			if v.Text() == allowed {
				return nil
			}
		}
		return derrors.NewValidation(fmt.Sprintf("%s must be one of %v", def.Name, def.Enum), def.Name)
	case TypeTemplateChoice:
		if v.Kind() != KindText && v.Kind() != KindChoice {
			return derrors.NewValidation(fmt.Sprintf("%s must be text or a tagged choice", def.Name), def.Name)
		}
	}
	return nil
}

// ValidateFields checks a full field map for create, collecting every
// offending field into one validation error.
func ValidateFields(defs []FieldDef, fields Fields) error {
	var items []string
	for _, def := range defs {
		if err := ValidateField(def, fields.Get(def.Name)); err != nil {
			items = append(items, def.Name)
		}
	}
	for name := range fields {
		if !hasField(defs, name) {
			items = append(items, name)
		}
	}
	if len(items) > 0 {
		return derrors.NewValidation("invalid fields", items...)
	}
	return nil
}

func hasField(defs []FieldDef, name string) bool {
	for _, def := range defs {
		if def.Name == name {
			return true
		}
	}
	return false
}
