package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"prequal/internal/application"
	"prequal/internal/documents"
	"prequal/internal/forms/schema"
	"prequal/internal/projects"
	"prequal/internal/questionnaire"
	"prequal/internal/records"
	"prequal/internal/requirements"
	"prequal/internal/submission"
	"prequal/internal/templates"
	id "prequal/pkg/domain"
	"prequal/pkg/platform/httputil"
	"prequal/pkg/requestcontext"
)

type env struct {
	router   http.Handler
	vendorID id.VendorID
	appID    id.ApplicationID
	recordID id.RecordID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	vendorID := id.NewVendorID()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithVendorID(context.Background(), vendorID), now)

	project := &projects.Project{ID: id.NewProjectID(), Name: "Coastal Highway", IsActive: true}
	projStore := projects.NewInMemory()
	projStore.Seed(project)

	recStore := records.NewInMemory()
	tmpl := templates.New(templates.NewInMemory())
	qStore := questionnaire.NewInMemory()
	appStore := application.NewInMemory()

	resolver := application.NewResolver(appStore)
	checker := records.NewQuestionChecker(recStore, qStore, resolver)
	subSvc := submission.NewService(submission.NewInMemory(), recStore, checker)
	appSvc := application.NewService(appStore, projStore, subSvc)
	recSvc := records.NewService(recStore, subSvc, tmpl, requirements.NewInMemory(), qStore, resolver)
	docSvc := documents.NewService(documents.NewInMemory(), documents.NewInMemoryBlobStore(), subSvc, recSvc)

	app, err := appSvc.Create(ctx, vendorID, project.ID)
	require.NoError(t, err)
	rec, err := recSvc.CreateRecord(ctx, app.ID, id.FormCompletedProjects, schema.Fields{
		"project_field": schema.Text("Similar"),
		"project_title": schema.Text("Airport access road"),
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(appSvc, docSvc, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqCtx := requestcontext.WithVendorID(req.Context(), vendorID)
			reqCtx = requestcontext.WithTime(reqCtx, now)
			next.ServeHTTP(w, req.WithContext(reqCtx))
		})
	})
	h.Register(r)

	return &env{router: r, vendorID: vendorID, appID: app.ID, recordID: rec.ID}
}

// multipartUpload builds a multipart body with a file part plus form fields.
func multipartUpload(t *testing.T, fileName string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *env) upload(t *testing.T, path, fileName string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndDownload(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/documents/upload", "signed-contract.pdf", map[string]string{
		"application_id":    e.appID.String(),
		"form_number":       "1",
		"document_type":     "contract_copy",
		"related_entity_id": e.recordID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var doc documents.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	require.Equal(t, "signed-contract.pdf", doc.FileName)
	require.Equal(t, e.recordID, doc.RelatedEntityID)

	urlReq := httptest.NewRequest(http.MethodGet,
		"/documents/"+doc.ID.String()+"/download-url?application_id="+e.appID.String(), nil)
	urlRec := httptest.NewRecorder()
	e.router.ServeHTTP(urlRec, urlReq)
	require.Equal(t, http.StatusOK, urlRec.Code)

	var urlBody map[string]string
	require.NoError(t, json.NewDecoder(urlRec.Body).Decode(&urlBody))
	require.NotEmpty(t, urlBody["download_url"])
}

func TestListFormDocuments(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/documents/upload", "signed-contract.pdf", map[string]string{
		"application_id":    e.appID.String(),
		"form_number":       "1",
		"document_type":     "contract_copy",
		"related_entity_id": e.recordID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet,
		"/documents/form/"+e.appID.String()+"/1", nil)
	listRec := httptest.NewRecorder()
	e.router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var docs []*documents.Document
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&docs))
	require.Len(t, docs, 1)
	require.Equal(t, "signed-contract.pdf", docs[0].FileName)

	filterReq := httptest.NewRequest(http.MethodGet,
		"/documents/form/"+e.appID.String()+"/1?related_entity_id="+id.NewRecordID().String(), nil)
	filterRec := httptest.NewRecorder()
	e.router.ServeHTTP(filterRec, filterReq)
	require.Equal(t, http.StatusNotFound, filterRec.Code)

	var body httputil.ErrorBody
	require.NoError(t, json.NewDecoder(filterRec.Body).Decode(&body))
	require.Equal(t, "not_found", body.Error)
}

func TestUploadAgainstUnknownRecordIsRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/documents/upload", "signed-contract.pdf", map[string]string{
		"application_id":    e.appID.String(),
		"form_number":       "1",
		"document_type":     "contract_copy",
		"related_entity_id": id.NewRecordID().String(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/documents/upload", "malware.exe", map[string]string{
		"application_id":    e.appID.String(),
		"form_number":       "1",
		"document_type":     "contract_copy",
		"related_entity_id": e.recordID.String(),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLegalDocumentSingleton(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/vendor-documents/legal", "certificate.pdf", map[string]string{
		"document_type": "classification_certificate",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.upload(t, "/vendor-documents/legal", "certificate-v2.pdf", map[string]string{
		"document_type": "classification_certificate",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errBody httputil.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errBody))
	require.Equal(t, "conflict", errBody.Error)

	listReq := httptest.NewRequest(http.MethodGet, "/vendor-documents?category=legal", nil)
	listRec := httptest.NewRecorder()
	e.router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var docs []documents.VendorDocument
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&docs))
	require.Len(t, docs, 1)
	require.Equal(t, "certificate.pdf", docs[0].FileName)
}

func TestFinancialStatementYearValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.upload(t, "/vendor-documents/financial-statements", "statement.pdf", map[string]string{
		"year": "2024",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.upload(t, "/vendor-documents/financial-statements", "statement.pdf", map[string]string{
		"year": "2019",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
