package submission

import (
	"context"
	"errors"
	"log/slog"

	"prequal/internal/forms/schema"
	"prequal/internal/platform/metrics"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/audit"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/requestcontext"
)

// RecordCounter reports how many records a form currently holds.
type RecordCounter interface {
	CountByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (int, error)
}

// QuestionnaireChecker reports which project questions still lack an answer.
type QuestionnaireChecker interface {
	UnansweredQuestions(ctx context.Context, appID id.ApplicationID) ([]string, error)
}

// Service owns the form lock lifecycle: lazy creation of submission rows,
// the locked-form guard used by every mutation path, and the one-way
// submit transition.
type Service struct {
	store     Store
	records   RecordCounter
	questions QuestionnaireChecker
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
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

func NewService(store Store, records RecordCounter, questions QuestionnaireChecker, opts ...Option) *Service {
	s := &Service{
		store:     store,
		records:   records,
		questions: questions,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure returns the submission row for a form, creating it unlocked on
// first access.
func (s *Service) Ensure(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error) {
	if _, err := schema.Form(form); err != nil {
		return nil, err
	}
	sub, err := s.store.Find(ctx, appID, form)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, coded(err)
	}

	sub = New(appID, form, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, sub); err != nil {
		// Lost a creation race; the winner's row is the truth.
		if errors.Is(err, sentinel.ErrConflict) {
			existing, findErr := s.store.Find(ctx, appID, form)
			if findErr != nil {
				return nil, coded(findErr)
			}
			return existing, nil
		}
		return nil, coded(err)
	}
	return sub, nil
}

// Guard rejects mutations on a locked form. A form with no submission row
// yet is unlocked.
func (s *Service) Guard(ctx context.Context, appID id.ApplicationID, form id.FormNumber) error {
	sub, err := s.store.Find(ctx, appID, form)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return coded(err)
	}
	if sub.IsLocked {
		if s.metrics != nil {
			s.metrics.LockedRejections.Inc()
		}
		return derrors.Newf(derrors.CodeLocked, "form %d is locked", form)
	}
	return nil
}

// MarkSaved stamps last_saved_at after a successful field save.
func (s *Service) MarkSaved(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error) {
	if _, err := s.Ensure(ctx, appID, form); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	sub, err := s.store.Execute(ctx, appID, form,
		func(sub *FormSubmission) error { return sub.CanSubmit() },
		func(sub *FormSubmission) { sub.TouchSaved(now) },
	)
	if err != nil {
		return nil, coded(err)
	}
	return sub, nil
}

// Submit locks a form permanently. Submitting an already-locked form is a
// no-op returning the existing row. Preconditions run before the transition:
// every form needs at least one record, and the questionnaire additionally
// needs every project question answered.
func (s *Service) Submit(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}

	sub, err := s.Ensure(ctx, appID, form)
	if err != nil {
		return nil, err
	}
	if sub.IsLocked {
		s.submitOutcome(form, "already_locked")
		return sub, nil
	}

	if err := s.checkPrecondition(ctx, appID, def); err != nil {
		s.submitOutcome(form, "precondition_failed")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	sub, err = s.store.Execute(ctx, appID, form,
		func(sub *FormSubmission) error { return sub.CanSubmit() },
		func(sub *FormSubmission) { sub.ApplySubmit(now) },
	)
	if err != nil {
		// Lost a submit race; the form is locked either way.
		if derrors.HasCode(err, derrors.CodeLocked) && sub != nil {
			s.submitOutcome(form, "already_locked")
			return sub, nil
		}
		s.submitOutcome(form, "error")
		return nil, coded(err)
	}

	s.submitOutcome(form, "submitted")
	s.logger.Info("form submitted",
		"application_id", appID,
		"form", form,
		"request_id", requestcontext.RequestID(ctx))
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Timestamp:     now,
			VendorID:      requestcontext.VendorID(ctx),
			ApplicationID: appID,
			FormNumber:    form,
			Action:        string(audit.EventFormSubmitted),
			RequestID:     requestcontext.RequestID(ctx),
		})
	}
	return sub, nil
}

// AllLocked reports whether every form of the application is submitted.
func (s *Service) AllLocked(ctx context.Context, appID id.ApplicationID) (bool, error) {
	subs, err := s.store.ListByApplication(ctx, appID)
	if err != nil {
		return false, coded(err)
	}
	locked := make(map[id.FormNumber]bool, len(subs))
	for _, sub := range subs {
		locked[sub.FormNumber] = sub.IsLocked
	}
	for _, form := range id.AllFormNumbers() {
		if !locked[form] {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) checkPrecondition(ctx context.Context, appID id.ApplicationID, def *schema.FormDef) error {
	switch def.Precondition {
	case schema.RequireAllQuestionsAnswered:
		missing, err := s.questions.UnansweredQuestions(ctx, appID)
		if err != nil {
			return coded(err)
		}
		if len(missing) > 0 {
			return derrors.NewValidation("all questions must be answered before submission", missing...)
		}
		return nil
	default:
		n, err := s.records.CountByForm(ctx, appID, def.Number)
		if err != nil {
			return coded(err)
		}
		if n == 0 {
			return derrors.NewValidation("at least one " + def.RecordName + " entry is required before submission")
		}
		return nil
	}
}

func (s *Service) submitOutcome(form id.FormNumber, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.FormSubmits.WithLabelValues(form.String(), outcome).Inc()
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
