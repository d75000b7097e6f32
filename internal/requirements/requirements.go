// Package requirements exposes the staffing and equipment minimums a project
// demands from applicants, and computes how far an application's current
// records go toward meeting them. Requirements are defined by the project
// owner and are read-only here.
package requirements

import (
	"context"
	"strings"

	"prequal/internal/forms/schema"
	id "prequal/pkg/domain"
)

// Requirement is one minimum the project imposes, such as "at least two
// Project Managers" or "at least fifty Welders".
type Requirement struct {
	Kind         schema.TemplateKind `json:"kind"`
	Name         string              `json:"name"`
	MinimumCount int                 `json:"minimum_count"`
}

// Status is a requirement together with the application's current standing.
type Status struct {
	Requirement
	Current int  `json:"current"`
	Met     bool `json:"met"`
}

// Store lists the requirements a project defines.
type Store interface {
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]Requirement, error)
}

// binding ties a requirement kind to the form whose records satisfy it. When
// countField is set, each matching record contributes that field's value;
// otherwise each matching record counts once.
type binding struct {
	form       id.FormNumber
	field      string
	countField string
}

var bindings = map[schema.TemplateKind]binding{
	schema.TemplatePositions:      {form: id.FormManagementPersonnel, field: "position"},
	schema.TemplateCrafts:         {form: id.FormManpower, field: "craft", countField: "total_count"},
	schema.TemplateEquipmentTypes: {form: id.FormEquipmentTools, field: "equipment_type", countField: "quantity"},
}

// FormFor reports which form's records satisfy requirements of the given
// kind, false when the kind is unknown.
func FormFor(kind schema.TemplateKind) (id.FormNumber, bool) {
	b, ok := bindings[kind]
	return b.form, ok
}

// Evaluate computes per-requirement fulfillment for one form from that form's
// current record field maps. Requirements bound to other forms are skipped.
// Name matching is case-insensitive and ignores surrounding whitespace, same
// as template resolution.
func Evaluate(form id.FormNumber, reqs []Requirement, records []schema.Fields) []Status {
	var out []Status
	for _, req := range reqs {
		b, ok := bindings[req.Kind]
		if !ok || b.form != form {
			continue
		}
		current := 0
		for _, fields := range records {
			if !nameMatches(fields.Get(b.field), req.Name) {
				continue
			}
			current += recordContribution(fields, b.countField)
		}
		out = append(out, Status{
			Requirement: req,
			Current:     current,
			Met:         current >= req.MinimumCount,
		})
	}
	return out
}

func nameMatches(v schema.Value, name string) bool {
	var got string
	switch v.Kind() {
	case schema.KindChoice:
		c, _ := v.Choice()
		got = c.Name
	case schema.KindText:
		got = v.Text()
	default:
		return false
	}
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(name))
}

func recordContribution(fields schema.Fields, countField string) int {
	if countField == "" {
		return 1
	}
	n, ok := fields.Get(countField).Number()
	if !ok {
		return 0
	}
	return int(n.IntPart())
}
