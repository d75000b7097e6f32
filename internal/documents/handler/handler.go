// Package handler exposes document upload, listing, deletion and presigned
// downloads. Uploads are multipart; everything else is JSON.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"prequal/internal/application"
	"prequal/internal/documents"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/httputil"
	"prequal/pkg/requestcontext"
)

// maxMultipartMemory bounds how much of an upload is buffered in memory
// before spilling to disk.
const maxMultipartMemory = 10 << 20

// Applications gates record-bound document routes on application ownership.
type Applications interface {
	Get(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) (*application.Application, error)
}

// Service defines the document operations the handler needs.
type Service interface {
	Upload(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, docType, fileName, contentType string, size int64, body io.Reader) (*documents.Document, error)
	Get(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) (*documents.Document, error)
	ListByRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) ([]*documents.Document, error)
	ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*documents.Document, error)
	Delete(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) error
	DownloadURL(ctx context.Context, appID id.ApplicationID, docID id.DocumentID) (string, error)

	UploadFinancialStatement(ctx context.Context, vendorID id.VendorID, year int, fileName, contentType string, size int64, body io.Reader) (*documents.VendorDocument, error)
	UploadLegalDocument(ctx context.Context, vendorID id.VendorID, docType, fileName, contentType string, size int64, body io.Reader) (*documents.VendorDocument, error)
	ListVendorDocs(ctx context.Context, vendorID id.VendorID, category documents.VendorDocCategory) ([]*documents.VendorDocument, error)
	DeleteVendorDoc(ctx context.Context, vendorID id.VendorID, docID id.DocumentID) error
	VendorDownloadURL(ctx context.Context, vendorID id.VendorID, docID id.DocumentID) (string, error)
}

type Handler struct {
	apps    Applications
	service Service
	logger  *slog.Logger
}

func New(apps Applications, service Service, logger *slog.Logger) *Handler {
	return &Handler{apps: apps, service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/upload", h.handleUpload)
	r.Get("/documents/{documentID}", h.handleGet)
	r.Get("/documents/{documentID}/download-url", h.handleDownloadURL)
	r.Delete("/documents/{documentID}", h.handleDelete)
	r.Get("/documents/form/{applicationID}/{formNumber}", h.handleListByForm)

	r.Post("/vendor-documents/financial-statements", h.handleUploadFinancial)
	r.Post("/vendor-documents/legal", h.handleUploadLegal)
	r.Get("/vendor-documents", h.handleListVendorDocs)
	r.Get("/vendor-documents/{documentID}/download-url", h.handleVendorDownloadURL)
	r.Delete("/vendor-documents/{documentID}", h.handleDeleteVendorDoc)
}

// upload is the parsed common part of a multipart upload request.
type upload struct {
	fileName    string
	contentType string
	size        int64
	body        io.ReadCloser
}

// parseUpload extracts the file part. A false return means the error
// response is already written.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed multipart request"))
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "missing file part"))
		return nil, false
	}
	return &upload{
		fileName:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		size:        header.Size,
		body:        file,
	}, true
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	up, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	defer up.body.Close()

	appID, err := id.ParseApplicationID(r.FormValue("application_id"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed application_id"))
		return
	}
	n, err := strconv.Atoi(r.FormValue("form_number"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed form_number"))
		return
	}
	form, err := id.ParseFormNumber(n)
	if err != nil {
		httputil.WriteError(w, derrors.Newf(derrors.CodeBadRequest, "unknown form number %d", n))
		return
	}
	recordID, err := id.ParseRecordID(r.FormValue("related_entity_id"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed related_entity_id"))
		return
	}
	docType := r.FormValue("document_type")
	if docType == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "document_type is required"))
		return
	}

	if _, err := h.apps.Get(ctx, requestcontext.VendorID(ctx), appID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Upload(ctx, appID, form, recordID, docType, up.fileName, up.contentType, up.size, up.body)
	if err != nil {
		h.logger.WarnContext(ctx, "document upload rejected",
			"request_id", requestID,
			"application_id", appID,
			"form", form,
			"document_type", docType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// docScope authorizes the application named in the document route.
func (h *Handler) docScope(w http.ResponseWriter, r *http.Request) (id.ApplicationID, id.DocumentID, bool) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed document id"))
		return id.ApplicationID{}, id.DocumentID{}, false
	}
	appID, err := id.ParseApplicationID(r.URL.Query().Get("application_id"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "application_id query parameter is required"))
		return id.ApplicationID{}, id.DocumentID{}, false
	}
	if _, err := h.apps.Get(ctx, requestcontext.VendorID(ctx), appID); err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, id.DocumentID{}, false
	}
	return appID, docID, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, docID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(ctx, appID, docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, docID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	url, err := h.service.DownloadURL(ctx, appID, docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, docID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, appID, docID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListByForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed application id"))
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "formNumber"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed form number"))
		return
	}
	form, err := id.ParseFormNumber(n)
	if err != nil {
		httputil.WriteError(w, derrors.Newf(derrors.CodeBadRequest, "unknown form number %d", n))
		return
	}
	if _, err := h.apps.Get(ctx, requestcontext.VendorID(ctx), appID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var docs []*documents.Document
	if raw := r.URL.Query().Get("related_entity_id"); raw != "" {
		recordID, err := id.ParseRecordID(raw)
		if err != nil {
			httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed record id"))
			return
		}
		docs, err = h.service.ListByRecord(ctx, appID, form, recordID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	} else {
		docs, err = h.service.ListByForm(ctx, appID, form)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if docs == nil {
		docs = []*documents.Document{}
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleUploadFinancial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	defer up.body.Close()

	year, err := strconv.Atoi(r.FormValue("year"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed year"))
		return
	}

	doc, err := h.service.UploadFinancialStatement(ctx, requestcontext.VendorID(ctx), year,
		up.fileName, up.contentType, up.size, up.body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleUploadLegal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	defer up.body.Close()

	doc, err := h.service.UploadLegalDocument(ctx, requestcontext.VendorID(ctx), r.FormValue("document_type"),
		up.fileName, up.contentType, up.size, up.body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleListVendorDocs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := documents.VendorDocCategory(r.URL.Query().Get("category"))
	if category != documents.CategoryFinancialStatement && category != documents.CategoryLegal {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "category must be financial_statement or legal"))
		return
	}
	docs, err := h.service.ListVendorDocs(ctx, requestcontext.VendorID(ctx), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if docs == nil {
		docs = []*documents.VendorDocument{}
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleVendorDownloadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed document id"))
		return
	}
	url, err := h.service.VendorDownloadURL(ctx, requestcontext.VendorID(ctx), docID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (h *Handler) handleDeleteVendorDoc(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed document id"))
		return
	}
	if err := h.service.DeleteVendorDoc(ctx, requestcontext.VendorID(ctx), docID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
