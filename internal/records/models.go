// Package records owns form record data: creation, per-field saves, child
// rows, and the composite snapshot each form screen loads. All mutation paths
// run behind the locked-form guard.
package records

import (
	"time"

	"prequal/internal/forms/schema"
	id "prequal/pkg/domain"
)

// Record is one row of a form, such as a completed project or a manpower
// entry. Field values are dynamic per the form's schema.
type Record struct {
	ID            id.RecordID      `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	FormNumber    id.FormNumber    `json:"form_number"`
	Fields        schema.Fields    `json:"fields"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// New returns a record with a fresh identifier and cloned fields.
func New(appID id.ApplicationID, form id.FormNumber, fields schema.Fields, now time.Time) *Record {
	return &Record{
		ID:            id.NewRecordID(),
		ApplicationID: appID,
		FormNumber:    form,
		Fields:        fields.Clone(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a copy safe to hand outside a store.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// ChildRecord is a nested row under a record, such as one education entry of
// a personnel resume. Families nest one level deep, never further.
type ChildRecord struct {
	ID        id.RecordID   `json:"id"`
	ParentID  id.RecordID   `json:"parent_id"`
	Family    string        `json:"family"`
	Fields    schema.Fields `json:"fields"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewChild returns a child row with a fresh identifier and cloned fields.
func NewChild(parentID id.RecordID, family string, fields schema.Fields, now time.Time) *ChildRecord {
	return &ChildRecord{
		ID:        id.NewRecordID(),
		ParentID:  parentID,
		Family:    family,
		Fields:    fields.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *ChildRecord) Clone() *ChildRecord {
	cc := *c
	cc.Fields = c.Fields.Clone()
	return &cc
}
