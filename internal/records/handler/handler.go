// Package handler exposes the per-form record workflow over HTTP: the form
// snapshot, record and child mutations, single-field saves and the one-way
// form submit.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"prequal/internal/application"
	"prequal/internal/forms/schema"
	"prequal/internal/records"
	"prequal/internal/submission"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/httputil"
	"prequal/pkg/requestcontext"
)

// Applications gates every route on application ownership.
type Applications interface {
	Get(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) (*application.Application, error)
	AutoSubmit(ctx context.Context, appID id.ApplicationID) (*application.Application, error)
}

// Service defines the record operations the handler needs.
type Service interface {
	FormData(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*records.FormData, error)
	CreateRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, fields schema.Fields) (*records.Record, error)
	UpdateFields(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, patch schema.Fields) (*records.Record, error)
	DeleteRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) error
	AddChild(ctx context.Context, appID id.ApplicationID, form id.FormNumber, parentID id.RecordID, family string, fields schema.Fields) (*records.ChildRecord, error)
	DeleteChild(ctx context.Context, appID id.ApplicationID, form id.FormNumber, childID id.RecordID) error
	InvalidateSnapshot(ctx context.Context, appID id.ApplicationID, form id.FormNumber)
}

// Submitter locks a form.
type Submitter interface {
	Submit(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*submission.FormSubmission, error)
}

type Handler struct {
	apps    Applications
	service Service
	subs    Submitter
	logger  *slog.Logger
}

func New(apps Applications, service Service, subs Submitter, logger *slog.Logger) *Handler {
	return &Handler{apps: apps, service: service, subs: subs, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/applications/{applicationID}/forms/{formNumber}", func(r chi.Router) {
		r.Get("/", h.handleFormData)
		r.Post("/submit", h.handleSubmit)
		r.Post("/records", h.handleCreateRecord)
		r.Patch("/records/{recordID}", h.handleUpdateFields)
		r.Delete("/records/{recordID}", h.handleDeleteRecord)
		r.Post("/records/{recordID}/children/{family}", h.handleAddChild)
		r.Delete("/children/{childID}", h.handleDeleteChild)
	})
}

// scope resolves and authorizes the {applicationID}/{formNumber} pair shared
// by every route. A false return means the response is already written.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (id.ApplicationID, id.FormNumber, bool) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed application id"))
		return id.ApplicationID{}, 0, false
	}
	n, err := strconv.Atoi(chi.URLParam(r, "formNumber"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed form number"))
		return id.ApplicationID{}, 0, false
	}
	form, err := id.ParseFormNumber(n)
	if err != nil {
		httputil.WriteError(w, derrors.Newf(derrors.CodeBadRequest, "unknown form number %d", n))
		return id.ApplicationID{}, 0, false
	}
	if _, err := h.apps.Get(ctx, requestcontext.VendorID(ctx), appID); err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, 0, false
	}
	return appID, form, true
}

func (h *Handler) handleFormData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	data, err := h.service.FormData(ctx, appID, form)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

type recordRequest struct {
	Fields schema.Fields `json:"fields"`
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[recordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.CreateRecord(ctx, appID, form, req.Fields)
	if err != nil {
		h.logger.WarnContext(ctx, "record creation rejected",
			"request_id", requestID,
			"application_id", appID,
			"form", form,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleUpdateFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed record id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[recordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.UpdateFields(ctx, appID, form, recordID, req.Fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed record id"))
		return
	}
	if err := h.service.DeleteRecord(ctx, appID, form, recordID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddChild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	parentID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed record id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[recordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	child, err := h.service.AddChild(ctx, appID, form, parentID, chi.URLParam(r, "family"), req.Fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, child)
}

func (h *Handler) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}
	childID, err := id.ParseRecordID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed child id"))
		return
	}
	if err := h.service.DeleteChild(ctx, appID, form, childID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	appID, form, ok := h.scope(w, r)
	if !ok {
		return
	}

	sub, err := h.subs.Submit(ctx, appID, form)
	if err != nil {
		h.logger.WarnContext(ctx, "form submission rejected",
			"request_id", requestID,
			"application_id", appID,
			"form", form,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	// The snapshot embeds submission state, so a submit invalidates it.
	h.service.InvalidateSnapshot(ctx, appID, form)

	if _, err := h.apps.AutoSubmit(ctx, appID); err != nil {
		h.logger.ErrorContext(ctx, "application auto-submit failed",
			"request_id", requestID,
			"application_id", appID,
			"error", err,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}
