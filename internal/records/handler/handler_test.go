package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"prequal/internal/application"
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
}

func newEnv(t *testing.T) *env {
	t.Helper()
	vendorID := id.NewVendorID()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	project := &projects.Project{ID: id.NewProjectID(), Name: "Coastal Highway", IsActive: true}
	projStore := projects.NewInMemory()
	projStore.Seed(project)

	recStore := records.NewInMemory()
	tmplStore := templates.NewInMemory()
	tmpl := templates.New(tmplStore)
	qStore := questionnaire.NewInMemory()
	appStore := application.NewInMemory()

	resolver := application.NewResolver(appStore)
	checker := records.NewQuestionChecker(recStore, qStore, resolver)
	subSvc := submission.NewService(submission.NewInMemory(), recStore, checker)
	appSvc := application.NewService(appStore, projStore, subSvc)
	recSvc := records.NewService(recStore, subSvc, tmpl, requirements.NewInMemory(), qStore, resolver)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(appSvc, recSvc, subSvc, logger)

	r := chi.NewRouter()
	// Stand-in for the auth middleware: a fixed vendor and a fixed clock.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithVendorID(req.Context(), vendorID)
			ctx = requestcontext.WithTime(ctx, now)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)

	app, err := appSvc.Create(requestcontext.WithTime(requestcontext.WithVendorID(context.Background(), vendorID), now), vendorID, project.ID)
	require.NoError(t, err)

	return &env{router: r, vendorID: vendorID, appID: app.ID}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRecordComputesDerivedField(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/applications/"+e.appID.String()+"/forms/2/records", map[string]any{
		"fields": map[string]any{
			"project_field":      "Similar",
			"client_name":        "Red Sea Development Co",
			"project_title":      "Marina breakwater",
			"contract_value_sar": 100000,
			"percent_completion": 45,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID     id.RecordID                `json:"id"`
		Fields map[string]json.RawMessage `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.False(t, created.ID.IsNil())
	require.JSONEq(t, "45000", string(created.Fields["completed_value_sar"]))
}

func TestValidationFailureListsOffendingFields(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/applications/"+e.appID.String()+"/forms/2/records", map[string]any{
		"fields": map[string]any{"client_name": "Acme"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body httputil.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "validation_failed", body.Error)
	require.Contains(t, body.Items, "project_field")
	require.Contains(t, body.Items, "project_title")
}

func TestFormSnapshotIncludesRecordsAndSubmission(t *testing.T) {
	e := newEnv(t)

	created := e.do(t, http.MethodPost, "/applications/"+e.appID.String()+"/forms/2/records", map[string]any{
		"fields": map[string]any{
			"project_field": "Similar",
			"client_name":   "Acme",
			"project_title": "Substation upgrade",
		},
	})
	require.Equal(t, http.StatusCreated, created.Code)

	rec := e.do(t, http.MethodGet, "/applications/"+e.appID.String()+"/forms/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot struct {
		FormNumber int `json:"form_number"`
		Submission struct {
			IsLocked bool `json:"is_locked"`
		} `json:"form_submission"`
		Records []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	require.Equal(t, 2, snapshot.FormNumber)
	require.False(t, snapshot.Submission.IsLocked)
	require.Len(t, snapshot.Records, 1)
}

func TestSubmitLocksTheForm(t *testing.T) {
	e := newEnv(t)
	base := "/applications/" + e.appID.String() + "/forms/2"

	created := e.do(t, http.MethodPost, base+"/records", map[string]any{
		"fields": map[string]any{
			"project_field": "Similar",
			"client_name":   "Acme",
			"project_title": "Substation upgrade",
		},
	})
	require.Equal(t, http.StatusCreated, created.Code)

	rec := e.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The form is now read-only.
	rec = e.do(t, http.MethodPost, base+"/records", map[string]any{
		"fields": map[string]any{
			"project_field": "Similar",
			"client_name":   "Other",
			"project_title": "Another",
		},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body httputil.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "form_locked", body.Error)
}

func TestSubmitEmptyFormFailsPrecondition(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/applications/"+e.appID.String()+"/forms/2/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUnknownApplicationIsNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/applications/"+id.NewApplicationID().String()+"/forms/2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedFormNumberIsBadRequest(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/applications/"+e.appID.String()+"/forms/nine", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
