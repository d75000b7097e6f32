// Package domain holds shared domain primitives: strongly typed identifiers
// and the form-number type used across the prequalification workflow.
//
// IDs wrap uuid.UUID in distinct named types so a RecordID can never be passed
// where a DocumentID is expected. Parsing enforces validity at the boundary.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type (
	// VendorID identifies a contracting company (the applicant).
	VendorID uuid.UUID
	// ProjectID identifies the project a vendor applies to qualify for.
	ProjectID uuid.UUID
	// ApplicationID identifies one vendor's attempt to qualify for one project.
	ApplicationID uuid.UUID
	// RecordID identifies a row within a form, including child rows.
	RecordID uuid.UUID
	// SubmissionID identifies one (application, form) submission row.
	SubmissionID uuid.UUID
	// DocumentID identifies uploaded document metadata.
	DocumentID uuid.UUID
	// QuestionID identifies a questionnaire question supplied by the project.
	QuestionID uuid.UUID
)

func (id VendorID) String() string      { return uuid.UUID(id).String() }
func (id ProjectID) String() string     { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id RecordID) String() string      { return uuid.UUID(id).String() }
func (id SubmissionID) String() string  { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }
func (id QuestionID) String() string    { return uuid.UUID(id).String() }

func (id VendorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ProjectID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id VendorID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ProjectID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id SubmissionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id QuestionID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *VendorID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "vendor id")
	*id = VendorID(u)
	return err
}

func (id *ProjectID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "project id")
	*id = ProjectID(u)
	return err
}

func (id *ApplicationID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "application id")
	*id = ApplicationID(u)
	return err
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "record id")
	*id = RecordID(u)
	return err
}

func (id *SubmissionID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "submission id")
	*id = SubmissionID(u)
	return err
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "document id")
	*id = DocumentID(u)
	return err
}

func (id *QuestionID) UnmarshalText(b []byte) error {
	u, err := parse(string(b), "question id")
	*id = QuestionID(u)
	return err
}

// ParseVendorID validates and returns a VendorID. Nil UUIDs are rejected so a
// zero value can never masquerade as a real identity.
func ParseVendorID(s string) (VendorID, error) {
	u, err := parse(s, "vendor id")
	return VendorID(u), err
}

func ParseProjectID(s string) (ProjectID, error) {
	u, err := parse(s, "project id")
	return ProjectID(u), err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parse(s, "application id")
	return ApplicationID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parse(s, "record id")
	return RecordID(u), err
}

func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parse(s, "submission id")
	return SubmissionID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parse(s, "document id")
	return DocumentID(u), err
}

func ParseQuestionID(s string) (QuestionID, error) {
	u, err := parse(s, "question id")
	return QuestionID(u), err
}

func parse(s, kind string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid %s: nil uuid", kind)
	}
	return u, nil
}

// NewVendorID and friends mint fresh identifiers. Kept as functions so call
// sites read as intent rather than conversion.
func NewVendorID() VendorID           { return VendorID(uuid.New()) }
func NewProjectID() ProjectID         { return ProjectID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewRecordID() RecordID           { return RecordID(uuid.New()) }
func NewSubmissionID() SubmissionID   { return SubmissionID(uuid.New()) }
func NewDocumentID() DocumentID       { return DocumentID(uuid.New()) }
func NewQuestionID() QuestionID       { return QuestionID(uuid.New()) }
