// Package documents binds uploaded files to form records and to the vendor
// itself. Record-bound documents require a persisted record and an unlocked
// form; vendor documents (financial statements, legal papers) are singletons
// per key and a second upload conflicts rather than replacing.
package documents

import (
	"path"
	"strings"
	"time"

	id "prequal/pkg/domain"
)

// Document is file metadata bound to one record of one form. The blob itself
// lives behind the BlobStore; only the storage key is kept here.
type Document struct {
	ID              id.DocumentID    `json:"id"`
	ApplicationID   id.ApplicationID `json:"application_id"`
	FormNumber      id.FormNumber    `json:"form_number"`
	RelatedEntityID id.RecordID      `json:"related_entity_id"`
	DocumentType    string           `json:"document_type"`
	FileName        string           `json:"file_name"`
	FileSize        int64            `json:"file_size"`
	ContentType     string           `json:"content_type"`
	StorageKey      string           `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
}

// VendorDocCategory separates the two vendor-level document families.
type VendorDocCategory string

const (
	// CategoryFinancialStatement holds one audited statement per year.
	CategoryFinancialStatement VendorDocCategory = "financial_statement"
	// CategoryLegal holds one document per legal document type.
	CategoryLegal VendorDocCategory = "legal"
)

// LegalDocumentTypes are the accepted keys for CategoryLegal.
var LegalDocumentTypes = []string{
	"classification_certificate",
	"saudi_contractors_authority",
	"municipal_registration",
}

// VendorDocument is file metadata scoped to the vendor rather than an
// application: financial statements keyed by year, legal documents keyed by
// type. At most one document per (vendor, category, key).
type VendorDocument struct {
	ID          id.DocumentID     `json:"id"`
	VendorID    id.VendorID       `json:"vendor_id"`
	Category    VendorDocCategory `json:"category"`
	Key         string            `json:"key"`
	FileName    string            `json:"file_name"`
	FileSize    int64             `json:"file_size"`
	ContentType string            `json:"content_type"`
	StorageKey  string            `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
}

// allowedExtensions is the upload allowlist, lowercased with the dot.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// MaxFileSize caps uploads at 100 MiB.
const MaxFileSize = 100 << 20

// extensionAllowed checks the file name's extension against the allowlist.
func extensionAllowed(fileName string) bool {
	return allowedExtensions[strings.ToLower(path.Ext(fileName))]
}

// IsLegalDocumentType reports whether the key names a known legal document.
func IsLegalDocumentType(key string) bool {
	for _, t := range LegalDocumentTypes {
		if t == key {
			return true
		}
	}
	return false
}
