// Package application owns the qualification application lifecycle: one
// application per (vendor, project), a monotonic review status, and the
// auto-submit that fires once every form is locked.
package application

import (
	"time"

	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
)

// Status is the application's review state. Transitions only move forward.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusReviewed    Status = "reviewed"
)

// statusRank orders statuses for the monotonic transition check.
var statusRank = map[Status]int{
	StatusDraft:       0,
	StatusSubmitted:   1,
	StatusUnderReview: 2,
	StatusReviewed:    3,
}

// Valid reports whether the status is one of the known review states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Application is a vendor's qualification dossier for one project.
type Application struct {
	ID          id.ApplicationID `json:"id"`
	VendorID    id.VendorID      `json:"vendor_id"`
	ProjectID   id.ProjectID     `json:"project_id"`
	Status      Status           `json:"status"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func New(vendorID id.VendorID, projectID id.ProjectID, now time.Time) *Application {
	return &Application{
		ID:        id.NewApplicationID(),
		VendorID:  vendorID,
		ProjectID: projectID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransition rejects moves to an unknown status or backwards along the
// review sequence. Re-asserting the current status is a no-op, not an error.
func (a *Application) CanTransition(next Status) error {
	if !next.Valid() {
		return derrors.Newf(derrors.CodeBadRequest, "unknown application status %q", next)
	}
	if statusRank[next] < statusRank[a.Status] {
		return derrors.Newf(derrors.CodeConflict, "application status cannot move from %s back to %s", a.Status, next)
	}
	return nil
}

// ApplyTransition moves the application forward, stamping submitted_at on
// the draft-to-submitted edge.
func (a *Application) ApplyTransition(next Status, now time.Time) {
	if a.Status == next {
		return
	}
	if a.Status == StatusDraft && statusRank[next] >= statusRank[StatusSubmitted] && a.SubmittedAt == nil {
		t := now
		a.SubmittedAt = &t
	}
	a.Status = next
	a.UpdatedAt = now
}

// CanDelete permits deletion of drafts only.
func (a *Application) CanDelete() error {
	if a.Status != StatusDraft {
		return derrors.Newf(derrors.CodeConflict, "a %s application cannot be deleted", a.Status)
	}
	return nil
}

func (a *Application) Clone() *Application {
	clone := *a
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		clone.SubmittedAt = &t
	}
	return &clone
}
