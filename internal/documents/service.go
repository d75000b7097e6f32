package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"prequal/internal/forms/schema"
	"prequal/internal/platform/metrics"
	"prequal/internal/records"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/audit"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/requestcontext"
)

// RecordResolver verifies that a record exists and belongs to the caller's
// application before a document may be bound to it.
type RecordResolver interface {
	Get(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) (*records.Record, error)
}

// FormGuard rejects mutations on a locked form.
type FormGuard interface {
	Guard(ctx context.Context, appID id.ApplicationID, form id.FormNumber) error
}

// financialStatementWindow is how many years back an audited statement is
// still accepted, counting the current year.
const financialStatementWindow = 5

// downloadTTL is how long a presigned download link stays valid.
const downloadTTL = time.Hour

// Service handles upload, listing, deletion and download of record-bound and
// vendor-level documents. Metadata lives in the Store, bytes in the
// BlobStore; a metadata failure after the blob write triggers a best-effort
// blob cleanup.
type Service struct {
	store   Store
	blobs   BlobStore
	guard   FormGuard
	records RecordResolver
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, blobs BlobStore, guard FormGuard, resolver RecordResolver, opts ...Option) *Service {
	s := &Service{
		store:   store,
		blobs:   blobs,
		guard:   guard,
		records: resolver,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores a file against a record. The record must already be
// persisted and its form unlocked; a singleton document type that already
// has a document on the record conflicts.
func (s *Service) Upload(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, docType, fileName, contentType string, size int64, body io.Reader) (*Document, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}
	if err := checkFile(fileName, size); err != nil {
		return nil, err
	}
	if err := s.guard.Guard(ctx, appID, form); err != nil {
		return nil, err
	}
	// A document can only bind to a record the server has persisted.
	if _, err := s.records.Get(ctx, appID, form, recordID); err != nil {
		return nil, err
	}
	if def.IsSingletonDocType(docType) {
		n, err := s.store.CountByRecordAndType(ctx, recordID, docType)
		if err != nil {
			return nil, coded(err)
		}
		if n > 0 {
			if s.metrics != nil {
				s.metrics.DocumentConflicts.Inc()
			}
			return nil, derrors.Newf(derrors.CodeConflict, "a %s document already exists for this record", docType)
		}
	}

	doc := &Document{
		ID:              id.NewDocumentID(),
		ApplicationID:   appID,
		FormNumber:      form,
		RelatedEntityID: recordID,
		DocumentType:    docType,
		FileName:        fileName,
		FileSize:        size,
		ContentType:     contentType,
		CreatedAt:       requestcontext.Now(ctx),
	}
	doc.StorageKey = fmt.Sprintf("applications/%s/form_%d/%s/%s%s",
		appID, form, docType, uuid.NewString(), strings.ToLower(path.Ext(fileName)))

	if err := s.blobs.Put(ctx, doc.StorageKey, contentType, body, size); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "blob storage unavailable")
	}
	if err := s.store.Create(ctx, doc); err != nil {
		s.cleanupBlob(ctx, doc.StorageKey)
		return nil, coded(err)
	}

	if s.metrics != nil {
		s.metrics.DocumentUploads.Inc()
	}
	s.logger.InfoContext(ctx, "document uploaded",
		slog.String("application_id", appID.String()),
		slog.Int("form", form.Int()),
		slog.String("document_id", doc.ID.String()),
		slog.String("document_type", docType))
	s.emit(ctx, audit.EventDocumentUploaded, appID, form, recordID.String(), docType)
	return doc, nil
}

// Get returns document metadata, hiding documents of other applications.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) (*Document, error) {
	doc, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, coded(err)
	}
	if doc.ApplicationID != appID {
		return nil, derrors.New(derrors.CodeNotFound, "document not found")
	}
	return doc, nil
}

// ListByRecord lists a record's documents after an ownership check on the
// record itself.
func (s *Service) ListByRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) ([]*Document, error) {
	if _, err := s.records.Get(ctx, appID, form, recordID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, coded(err)
	}
	return docs, nil
}

// ListByForm lists every document uploaded against one form of an
// application.
func (s *Service) ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Document, error) {
	if _, err := schema.Form(form); err != nil {
		return nil, err
	}
	docs, err := s.store.ListByForm(ctx, appID, form)
	if err != nil {
		return nil, coded(err)
	}
	return docs, nil
}

// Delete removes a document's metadata and blob. Locked forms reject the
// deletion like any other mutation.
func (s *Service) Delete(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) error {
	doc, err := s.Get(ctx, appID, docID)
	if err != nil {
		return err
	}
	if err := s.guard.Guard(ctx, appID, doc.FormNumber); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docID); err != nil {
		return coded(err)
	}
	s.cleanupBlob(ctx, doc.StorageKey)
	s.emit(ctx, audit.EventDocumentDeleted, appID, doc.FormNumber, doc.RelatedEntityID.String(), doc.DocumentType)
	return nil
}

// DownloadURL returns a short-lived presigned link for the document's blob.
func (s *Service) DownloadURL(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) (string, error) {
	doc, err := s.Get(ctx, appID, docID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignGet(ctx, doc.StorageKey, downloadTTL)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeUnavailable, "blob storage unavailable")
	}
	return url, nil
}

// UploadFinancialStatement stores one audited statement per year for the
// vendor. Years older than the acceptance window or in the future are
// rejected; a second statement for the same year conflicts.
func (s *Service) UploadFinancialStatement(ctx context.Context, vendorID id.VendorID, year int, fileName, contentType string, size int64, body io.Reader) (*VendorDocument, error) {
	current := requestcontext.Now(ctx).Year()
	if year > current || year <= current-financialStatementWindow {
		return nil, derrors.Newf(derrors.CodeValidation, "financial statements are accepted for %d through %d", current-financialStatementWindow+1, current)
	}
	return s.uploadVendorDoc(ctx, vendorID, CategoryFinancialStatement, strconv.Itoa(year), fileName, contentType, size, body)
}

// UploadLegalDocument stores one document per legal document type for the
// vendor. A second upload for the same type conflicts.
func (s *Service) UploadLegalDocument(ctx context.Context, vendorID id.VendorID, docType, fileName, contentType string, size int64, body io.Reader) (*VendorDocument, error) {
	if !IsLegalDocumentType(docType) {
		return nil, derrors.Newf(derrors.CodeValidation, "unknown legal document type %q", docType)
	}
	return s.uploadVendorDoc(ctx, vendorID, CategoryLegal, docType, fileName, contentType, size, body)
}

func (s *Service) uploadVendorDoc(ctx context.Context, vendorID id.VendorID, category VendorDocCategory, key, fileName, contentType string, size int64, body io.Reader) (*VendorDocument, error) {
	if err := checkFile(fileName, size); err != nil {
		return nil, err
	}

	doc := &VendorDocument{
		ID:          id.NewDocumentID(),
		VendorID:    vendorID,
		Category:    category,
		Key:         key,
		FileName:    fileName,
		FileSize:    size,
		ContentType: contentType,
		CreatedAt:   requestcontext.Now(ctx),
	}
	doc.StorageKey = fmt.Sprintf("vendors/%s/%s/%s/%s%s",
		vendorID, category, key, uuid.NewString(), strings.ToLower(path.Ext(fileName)))

	if err := s.blobs.Put(ctx, doc.StorageKey, contentType, body, size); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "blob storage unavailable")
	}
	if err := s.store.CreateVendorDoc(ctx, doc); err != nil {
		s.cleanupBlob(ctx, doc.StorageKey)
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.DocumentConflicts.Inc()
			}
			return nil, derrors.Newf(derrors.CodeConflict, "a %s document for %s already exists", category, key)
		}
		return nil, coded(err)
	}

	if s.metrics != nil {
		s.metrics.DocumentUploads.Inc()
	}
	s.logger.InfoContext(ctx, "vendor document uploaded",
		slog.String("vendor_id", vendorID.String()),
		slog.String("category", string(category)),
		slog.String("key", key))
	return doc, nil
}

// GetVendorDoc returns vendor document metadata, hiding other vendors' rows.
func (s *Service) GetVendorDoc(ctx context.Context, vendorID id.VendorID, docID id.DocumentID) (*VendorDocument, error) {
	doc, err := s.store.GetVendorDoc(ctx, docID)
	if err != nil {
		return nil, coded(err)
	}
	if doc.VendorID != vendorID {
		return nil, derrors.New(derrors.CodeNotFound, "document not found")
	}
	return doc, nil
}

// ListVendorDocs lists a vendor's documents in one category.
func (s *Service) ListVendorDocs(ctx context.Context, vendorID id.VendorID, category VendorDocCategory) ([]*VendorDocument, error) {
	docs, err := s.store.ListVendorDocs(ctx, vendorID, category)
	if err != nil {
		return nil, coded(err)
	}
	return docs, nil
}

// DeleteVendorDoc removes a vendor document, freeing its (category, key)
// slot for a replacement upload.
func (s *Service) DeleteVendorDoc(ctx context.Context, vendorID id.VendorID, docID id.DocumentID) error {
	doc, err := s.GetVendorDoc(ctx, vendorID, docID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVendorDoc(ctx, docID); err != nil {
		return coded(err)
	}
	s.cleanupBlob(ctx, doc.StorageKey)
	return nil
}

// VendorDownloadURL returns a presigned link for a vendor document's blob.
func (s *Service) VendorDownloadURL(ctx context.Context, vendorID id.VendorID, docID id.DocumentID) (string, error) {
	doc, err := s.GetVendorDoc(ctx, vendorID, docID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignGet(ctx, doc.StorageKey, downloadTTL)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeUnavailable, "blob storage unavailable")
	}
	return url, nil
}

func (s *Service) cleanupBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "orphaned blob not cleaned up",
			slog.String("storage_key", key), slog.Any("error", err))
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, appID id.ApplicationID, form id.FormNumber, recordID, detail string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		VendorID:      requestcontext.VendorID(ctx),
		ApplicationID: appID,
		FormNumber:    form,
		RecordID:      recordID,
		Action:        string(action),
		Detail:        detail,
		RequestID:     requestcontext.RequestID(ctx),
	})
}

func checkFile(fileName string, size int64) error {
	if !extensionAllowed(fileName) {
		return derrors.Newf(derrors.CodeValidation, "file type %q is not accepted", path.Ext(fileName))
	}
	if size <= 0 || size > MaxFileSize {
		return derrors.New(derrors.CodeValidation, "file size must be between 1 byte and 100 MiB")
	}
	return nil
}

// coded maps storage sentinels onto the error taxonomy the transport layer
// understands. Already-coded errors pass through untouched.
func coded(err error) error {
	var derr *derrors.Error
	if errors.As(err, &derr) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return derrors.Wrap(err, derrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return derrors.Wrap(err, derrors.CodeConflict, "conflicting update")
	case errors.Is(err, sentinel.ErrUnavailable):
		return derrors.Wrap(err, derrors.CodeUnavailable, "storage unavailable")
	}
	return err
}
