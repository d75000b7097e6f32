package documents

import (
	"context"

	id "prequal/pkg/domain"
)

// Store persists document metadata. Lookups return sentinel.ErrNotFound for
// missing rows; vendor document creation returns sentinel.ErrConflict when
// the (vendor, category, key) slot is taken.
type Store interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, docID id.DocumentID) (*Document, error)
	ListByRecord(ctx context.Context, recordID id.RecordID) ([]*Document, error)
	ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Document, error)
	CountByRecordAndType(ctx context.Context, recordID id.RecordID, docType string) (int, error)
	Delete(ctx context.Context, docID id.DocumentID) error

	CreateVendorDoc(ctx context.Context, doc *VendorDocument) error
	GetVendorDoc(ctx context.Context, docID id.DocumentID) (*VendorDocument, error)
	ListVendorDocs(ctx context.Context, vendorID id.VendorID, category VendorDocCategory) ([]*VendorDocument, error)
	DeleteVendorDoc(ctx context.Context, docID id.DocumentID) error
}
