package submission

import (
	"context"

	id "prequal/pkg/domain"
)

// Store persists form submission state. Find returns sentinel.ErrNotFound
// when no row exists yet; Create returns sentinel.ErrConflict when another
// writer created the row first.
type Store interface {
	Create(ctx context.Context, sub *FormSubmission) error
	Find(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error)
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*FormSubmission, error)

	// Execute atomically loads the row, runs validate, and commits mutate.
	// On validation failure the current row is returned alongside the error
	// so callers can inspect the state they lost to.
	Execute(ctx context.Context, appID id.ApplicationID, form id.FormNumber,
		validate func(*FormSubmission) error,
		mutate func(*FormSubmission)) (*FormSubmission, error)
}
