package application

import (
	"context"
	"errors"
	"log/slog"

	"prequal/internal/projects"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/audit"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/requestcontext"
)

// FormLocks reports whether every form of an application is locked.
type FormLocks interface {
	AllLocked(ctx context.Context, appID id.ApplicationID) (bool, error)
}

// Service owns the application lifecycle: one application per (vendor,
// project), draft-only deletion and the auto-submit that fires when the
// final form locks.
type Service struct {
	store    Store
	projects projects.Store
	locks    FormLocks
	auditor  *audit.Publisher
	logger   *slog.Logger
}

type Option func(*Service)

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, projectStore projects.Store, locks FormLocks, opts ...Option) *Service {
	s := &Service{
		store:    store,
		projects: projectStore,
		locks:    locks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a draft application for the vendor against a project. A
// second application for the same (vendor, project) conflicts.
func (s *Service) Create(ctx context.Context, vendorID id.VendorID, projectID id.ProjectID) (*Application, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.Newf(derrors.CodeBadRequest, "project %s does not exist", projectID)
		}
		return nil, coded(err)
	}
	if !project.IsActive {
		return nil, derrors.Newf(derrors.CodeValidation, "project %q is not accepting applications", project.Name)
	}

	app := New(vendorID, projectID, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, derrors.New(derrors.CodeConflict, "an application for this project already exists")
		}
		return nil, coded(err)
	}

	s.logger.InfoContext(ctx, "application created",
		slog.String("application_id", app.ID.String()),
		slog.String("vendor_id", vendorID.String()),
		slog.String("project_id", projectID.String()))
	s.emit(ctx, audit.EventApplicationCreated, app, project.Name)
	return app, nil
}

// List returns the vendor's applications, oldest first.
func (s *Service) List(ctx context.Context, vendorID id.VendorID) ([]*Application, error) {
	apps, err := s.store.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, coded(err)
	}
	return apps, nil
}

// Get returns one application, hiding other vendors' rows.
func (s *Service) Get(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) (*Application, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, coded(err)
	}
	if app.VendorID != vendorID {
		return nil, derrors.New(derrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// Delete removes a draft application. Once submitted an application is part
// of the review record and can no longer be deleted.
func (s *Service) Delete(ctx context.Context, vendorID id.VendorID, appID id.ApplicationID) error {
	app, err := s.Get(ctx, vendorID, appID)
	if err != nil {
		return err
	}
	if err := app.CanDelete(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, appID); err != nil {
		return coded(err)
	}
	s.emit(ctx, audit.EventApplicationDeleted, app, "")
	return nil
}

// AutoSubmit moves a draft to submitted once every form is locked. Called
// after each form submission; a partial dossier is a no-op.
func (s *Service) AutoSubmit(ctx context.Context, appID id.ApplicationID) (*Application, error) {
	allLocked, err := s.locks.AllLocked(ctx, appID)
	if err != nil {
		return nil, err
	}
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, coded(err)
	}
	if !allLocked || app.Status != StatusDraft {
		return app, nil
	}

	now := requestcontext.Now(ctx)
	app, err = s.store.Execute(ctx, appID,
		func(app *Application) error { return app.CanTransition(StatusSubmitted) },
		func(app *Application) { app.ApplyTransition(StatusSubmitted, now) },
	)
	if err != nil {
		// A concurrent reviewer transition wins; the dossier is submitted
		// either way.
		if derrors.HasCode(err, derrors.CodeConflict) {
			return app, nil
		}
		return nil, coded(err)
	}

	s.logger.InfoContext(ctx, "application submitted",
		slog.String("application_id", appID.String()))
	s.emit(ctx, audit.EventApplicationSubmitted, app, "")
	return app, nil
}

// UpdateStatus advances the review state. Moves never go backwards.
func (s *Service) UpdateStatus(ctx context.Context, appID id.ApplicationID, next Status) (*Application, error) {
	now := requestcontext.Now(ctx)
	app, err := s.store.Execute(ctx, appID,
		func(app *Application) error { return app.CanTransition(next) },
		func(app *Application) { app.ApplyTransition(next, now) },
	)
	if err != nil {
		return nil, coded(err)
	}
	return app, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, app *Application, detail string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		VendorID:      app.VendorID,
		ApplicationID: app.ID,
		Action:        string(action),
		Detail:        detail,
		RequestID:     requestcontext.RequestID(ctx),
	})
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
