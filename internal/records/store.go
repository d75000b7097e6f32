package records

import (
	"context"

	id "prequal/pkg/domain"
)

// Store persists records and their child rows. Lookups return
// sentinel.ErrNotFound for missing rows. Deleting a record removes its
// children with it.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, recordID id.RecordID) (*Record, error)
	ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Record, error)
	CountByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (int, error)

	// FindByFieldText locates the record whose named field holds the given
	// text value, for unique-field enforcement.
	FindByFieldText(ctx context.Context, appID id.ApplicationID, form id.FormNumber, field, value string) (*Record, error)

	// Execute atomically loads a record, runs validate, and commits mutate.
	Execute(ctx context.Context, recordID id.RecordID,
		validate func(*Record) error,
		mutate func(*Record)) (*Record, error)

	Delete(ctx context.Context, recordID id.RecordID) error

	CreateChild(ctx context.Context, child *ChildRecord) error
	GetChild(ctx context.Context, childID id.RecordID) (*ChildRecord, error)
	ListChildren(ctx context.Context, parentID id.RecordID) ([]*ChildRecord, error)
	DeleteChild(ctx context.Context, childID id.RecordID) error
}
