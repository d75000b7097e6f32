// Package projects is a read-only registry of the client projects vendors
// apply against. Projects are administered out of band; this service only
// looks them up.
package projects

import (
	"context"
	"time"

	id "prequal/pkg/domain"
)

// Project is a tender a vendor can apply to. Inactive projects no longer
// accept applications.
type Project struct {
	ID        id.ProjectID `json:"id"`
	Name      string       `json:"name"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

type Store interface {
	Get(ctx context.Context, projectID id.ProjectID) (*Project, error)
	ListActive(ctx context.Context) ([]*Project, error)
}
