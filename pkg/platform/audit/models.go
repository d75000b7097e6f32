package audit

import (
	"time"

	id "prequal/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, which
// drives retention and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with contractual significance, such
	// as form and application submissions. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging and
	// support. Can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category      EventCategory    `json:"category"`
	Timestamp     time.Time        `json:"timestamp"`
	VendorID      id.VendorID      `json:"vendor_id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	FormNumber    id.FormNumber    `json:"form_number,omitempty"`
	RecordID      string           `json:"record_id,omitempty"`
	Action        string           `json:"action"`
	Detail        string           `json:"detail,omitempty"`
	RequestID     string           `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventApplicationCreated   AuditEvent = "application_created"
	EventApplicationDeleted   AuditEvent = "application_deleted"
	EventApplicationSubmitted AuditEvent = "application_submitted"
	EventFormSubmitted        AuditEvent = "form_submitted"
	EventDocumentUploaded     AuditEvent = "document_uploaded"
	EventDocumentDeleted      AuditEvent = "document_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventApplicationCreated:   CategoryOperations,
	EventApplicationDeleted:   CategoryOperations,
	EventApplicationSubmitted: CategoryCompliance,
	EventFormSubmitted:        CategoryCompliance,
	EventDocumentUploaded:     CategoryOperations,
	EventDocumentDeleted:      CategoryOperations,
}

// CategoryFor returns the category for an event action, defaulting to
// operations for unknown actions.
func CategoryFor(action AuditEvent) EventCategory {
	if c, ok := eventCategories[action]; ok {
		return c
	}
	return CategoryOperations
}
