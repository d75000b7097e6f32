package application

import (
	"context"

	id "prequal/pkg/domain"
)

// Resolver answers "which project does this application target" straight
// from the store. It exists so collaborators that only need the mapping can
// be built before the full Service.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) ProjectOf(ctx context.Context, appID id.ApplicationID) (id.ProjectID, error) {
	app, err := r.store.Get(ctx, appID)
	if err != nil {
		return id.ProjectID{}, coded(err)
	}
	return app.ProjectID, nil
}
