package application

import (
	"context"

	id "prequal/pkg/domain"
)

// Store persists applications. Create must refuse a second application for
// the same (vendor, project) pair with sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, app *Application) error
	Get(ctx context.Context, appID id.ApplicationID) (*Application, error)
	ListByVendor(ctx context.Context, vendorID id.VendorID) ([]*Application, error)

	// Execute loads the application, runs validate against the current row,
	// applies mutate and persists, all under the row lock. On validation
	// failure the current row is returned alongside the error.
	Execute(ctx context.Context, appID id.ApplicationID,
		validate func(*Application) error, mutate func(*Application)) (*Application, error)

	Delete(ctx context.Context, appID id.ApplicationID) error
}
