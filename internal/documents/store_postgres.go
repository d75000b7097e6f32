package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore persists document metadata in the document_uploads and
// vendor_documents tables. The vendor_documents table carries a unique index
// on (vendor_id, category, key).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const docColumns = `id, application_id, form_number, related_entity_id, document_type,
	file_name, file_size, content_type, storage_key, created_at`

func (s *PostgresStore) Create(ctx context.Context, doc *Document) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO document_uploads (`+docColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID.String(), doc.ApplicationID.String(), int(doc.FormNumber),
		doc.RelatedEntityID.String(), doc.DocumentType,
		doc.FileName, doc.FileSize, doc.ContentType, doc.StorageKey, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, docID id.DocumentID) (*Document, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM document_uploads WHERE id = $1`,
		docID.String())
	return scanDocument(row)
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID id.RecordID) ([]*Document, error) {
	return s.listDocs(ctx,
		`SELECT `+docColumns+` FROM document_uploads WHERE related_entity_id = $1 ORDER BY created_at, id`,
		recordID.String())
}

func (s *PostgresStore) ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Document, error) {
	return s.listDocs(ctx,
		`SELECT `+docColumns+` FROM document_uploads
		  WHERE application_id = $1 AND form_number = $2 ORDER BY created_at, id`,
		appID.String(), int(form))
}

func (s *PostgresStore) listDocs(ctx context.Context, query string, args ...any) ([]*Document, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByRecordAndType(ctx context.Context, recordID id.RecordID, docType string) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM document_uploads WHERE related_entity_id = $1 AND document_type = $2`,
		recordID.String(), docType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, docID id.DocumentID) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`DELETE FROM document_uploads WHERE id = $1`, docID.String())
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	return nil
}

const vendorDocColumns = `id, vendor_id, category, key, file_name, file_size,
	content_type, storage_key, created_at`

func (s *PostgresStore) CreateVendorDoc(ctx context.Context, doc *VendorDocument) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO vendor_documents (`+vendorDocColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID.String(), doc.VendorID.String(), string(doc.Category), doc.Key,
		doc.FileName, doc.FileSize, doc.ContentType, doc.StorageKey, doc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%s %s: %w", doc.Category, doc.Key, sentinel.ErrConflict)
		}
		return fmt.Errorf("create vendor document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVendorDoc(ctx context.Context, docID id.DocumentID) (*VendorDocument, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+vendorDocColumns+` FROM vendor_documents WHERE id = $1`,
		docID.String())
	return scanVendorDoc(row)
}

func (s *PostgresStore) ListVendorDocs(ctx context.Context, vendorID id.VendorID, category VendorDocCategory) ([]*VendorDocument, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+vendorDocColumns+` FROM vendor_documents
		  WHERE vendor_id = $1 AND category = $2 ORDER BY key`,
		vendorID.String(), string(category))
	if err != nil {
		return nil, fmt.Errorf("list vendor documents: %w", err)
	}
	defer rows.Close()

	var out []*VendorDocument
	for rows.Next() {
		doc, err := scanVendorDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteVendorDoc(ctx context.Context, docID id.DocumentID) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`DELETE FROM vendor_documents WHERE id = $1`, docID.String())
	if err != nil {
		return fmt.Errorf("delete vendor document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vendor document %s: %w", docID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc       Document
		rawID     string
		rawApp    string
		rawForm   int
		rawEntity string
	)
	err := row.Scan(&rawID, &rawApp, &rawForm, &rawEntity, &doc.DocumentType,
		&doc.FileName, &doc.FileSize, &doc.ContentType, &doc.StorageKey, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if doc.ID, err = id.ParseDocumentID(rawID); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if doc.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if doc.FormNumber, err = id.ParseFormNumber(rawForm); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if doc.RelatedEntityID, err = id.ParseRecordID(rawEntity); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func scanVendorDoc(row rowScanner) (*VendorDocument, error) {
	var (
		doc       VendorDocument
		rawID     string
		rawVendor string
		category  string
	)
	err := row.Scan(&rawID, &rawVendor, &category, &doc.Key,
		&doc.FileName, &doc.FileSize, &doc.ContentType, &doc.StorageKey, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor document: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan vendor document: %w", err)
	}

	if doc.ID, err = id.ParseDocumentID(rawID); err != nil {
		return nil, fmt.Errorf("scan vendor document: %w", err)
	}
	if doc.VendorID, err = id.ParseVendorID(rawVendor); err != nil {
		return nil, fmt.Errorf("scan vendor document: %w", err)
	}
	doc.Category = VendorDocCategory(category)
	return &doc, nil
}
