// Package submission tracks the lock state of each form within an
// application. A form starts unlocked, accepts field saves, and becomes
// permanently locked once submitted. Submission rows are created lazily the
// first time a form is read or written.
package submission

import (
	"time"

	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
)

// FormSubmission is the per-(application, form) state row.
type FormSubmission struct {
	ID            id.SubmissionID  `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	FormNumber    id.FormNumber    `json:"form_number"`
	IsLocked      bool             `json:"is_locked"`
	IsComplete    bool             `json:"is_complete"`
	LastSavedAt   *time.Time       `json:"last_saved_at,omitempty"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// New returns an unlocked submission row for one form of an application.
func New(appID id.ApplicationID, form id.FormNumber, now time.Time) *FormSubmission {
	return &FormSubmission{
		ID:            id.NewSubmissionID(),
		ApplicationID: appID,
		FormNumber:    form,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanSubmit reports whether the form may transition to locked.
func (s *FormSubmission) CanSubmit() error {
	if s.IsLocked {
		return derrors.Newf(derrors.CodeLocked, "form %d is already submitted", s.FormNumber)
	}
	return nil
}

// ApplySubmit locks the form. Callers must check CanSubmit first.
func (s *FormSubmission) ApplySubmit(now time.Time) {
	s.IsLocked = true
	s.IsComplete = true
	s.SubmittedAt = &now
	s.UpdatedAt = now
}

// TouchSaved records a successful field save.
func (s *FormSubmission) TouchSaved(now time.Time) {
	s.LastSavedAt = &now
	s.UpdatedAt = now
}

// Clone returns a copy safe to hand outside a store.
func (s *FormSubmission) Clone() *FormSubmission {
	c := *s
	if s.LastSavedAt != nil {
		t := *s.LastSavedAt
		c.LastSavedAt = &t
	}
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}
