// Package handler exposes the application lifecycle over HTTP. Every route
// acts on behalf of the authenticated vendor; cross-vendor access surfaces
// as not-found.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"prequal/internal/application"
	"prequal/internal/projects"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/httputil"
	"prequal/pkg/requestcontext"
)

// Service defines the application operations the handler needs.
type Service interface {
	Create(ctx context.Context, vendorID id.VendorID, projectID id.ProjectID) (*application.Application, error)
	List(ctx context.Context, vendorID id.VendorID) ([]*application.Application, error)
	Get(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) (*application.Application, error)
	Delete(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) error
}

type Handler struct {
	service  Service
	projects projects.Store
	logger   *slog.Logger
}

func New(service Service, projectStore projects.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, projects: projectStore, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/projects", h.handleListProjects)
	r.Post("/applications", h.handleCreate)
	r.Get("/applications", h.handleList)
	r.Get("/applications/{applicationID}", h.handleGet)
	r.Delete("/applications/{applicationID}", h.handleDelete)
}

type createRequest struct {
	ProjectID id.ProjectID `json:"project_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	vendorID := requestcontext.VendorID(ctx)

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ProjectID.IsNil() {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "project_id is required"))
		return
	}

	app, err := h.service.Create(ctx, vendorID, req.ProjectID)
	if err != nil {
		h.logger.WarnContext(ctx, "application creation rejected",
			"request_id", requestID,
			"project_id", req.ProjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.service.List(ctx, requestcontext.VendorID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed application id"))
		return
	}
	app, err := h.service.Get(ctx, requestcontext.VendorID(ctx), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed application id"))
		return
	}
	if err := h.service.Delete(ctx, requestcontext.VendorID(ctx), appID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.projects.ListActive(ctx)
	if err != nil {
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeUnavailable, "project registry unavailable"))
		return
	}
	if list == nil {
		list = []*projects.Project{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
