package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"prequal/internal/forms/schema"
	"prequal/internal/questionnaire"
	"prequal/internal/requirements"
	"prequal/internal/submission"
	"prequal/internal/templates"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/requestcontext"
)

// ProjectResolver maps an application to the project it targets.
type ProjectResolver interface {
	ProjectOf(ctx context.Context, appID id.ApplicationID) (id.ProjectID, error)
}

// Service owns record lifecycle and the composite form snapshot. Every
// mutation runs behind the submission lock guard and stamps last_saved_at on
// success.
type Service struct {
	store        Store
	subs         *submission.Service
	templates    *templates.Service
	requirements requirements.Store
	questions    questionnaire.Store
	projects     ProjectResolver

	cache       redis.Cmdable
	snapshotTTL time.Duration
	logger      *slog.Logger
}

type Option func(*Service)

// WithSnapshotCache caches assembled form snapshots in redis. Mutations
// invalidate the affected form's entry.
func WithSnapshotCache(cache redis.Cmdable, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.snapshotTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(
	store Store,
	subs *submission.Service,
	tmpl *templates.Service,
	reqs requirements.Store,
	questions questionnaire.Store,
	projects ProjectResolver,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		subs:         subs,
		templates:    tmpl,
		requirements: reqs,
		questions:    questions,
		projects:     projects,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRecord validates, resolves categorical values, computes derived
// fields, and persists a new record.
func (s *Service) CreateRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, fields schema.Fields) (*Record, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Guard(ctx, appID, form); err != nil {
		return nil, err
	}

	fields = fields.Clone()
	if err := s.resolveChoices(ctx, def, fields); err != nil {
		return nil, err
	}
	if err := schema.ValidateFields(def.Fields, fields); err != nil {
		return nil, err
	}
	for _, d := range def.Derived {
		d.Recompute(fields)
	}
	if err := s.checkUnique(ctx, appID, def, fields, id.RecordID{}); err != nil {
		return nil, err
	}

	rec := New(appID, form, fields, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, coded(err)
	}
	if _, err := s.subs.MarkSaved(ctx, appID, form); err != nil {
		s.logger.Warn("mark saved failed after record create", "record_id", rec.ID, "error", err)
	}
	s.InvalidateSnapshot(ctx, appID, form)
	return rec, nil
}

// Get returns one record, verifying it belongs to the application and form.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) (*Record, error) {
	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		return nil, coded(err)
	}
	if rec.ApplicationID != appID || rec.FormNumber != form {
		return nil, derrors.Newf(derrors.CodeNotFound, "record %s not found", recordID)
	}
	return rec, nil
}

// UpdateFields applies a partial field patch to a record. Only the supplied
// fields change; derived fields depending on them are recomputed in the same
// commit. Last write wins per field.
func (s *Service) UpdateFields(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, patch schema.Fields) (*Record, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Guard(ctx, appID, form); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, derrors.New(derrors.CodeBadRequest, "empty field patch")
	}

	patch = patch.Clone()
	if err := s.resolveChoices(ctx, def, patch); err != nil {
		return nil, err
	}
	var items []string
	for name, v := range patch {
		fd, ok := def.Field(name)
		if !ok {
			items = append(items, name)
			continue
		}
		if err := schema.ValidateField(fd, v); err != nil {
			items = append(items, name)
		}
	}
	if len(items) > 0 {
		return nil, derrors.NewValidation("invalid fields", items...)
	}

	if def.UniqueField != "" {
		if _, changed := patch[def.UniqueField]; changed {
			if err := s.checkUnique(ctx, appID, def, patch, recordID); err != nil {
				return nil, err
			}
		}
	}

	now := requestcontext.Now(ctx)
	rec, err := s.store.Execute(ctx, recordID,
		func(rec *Record) error {
			if rec.ApplicationID != appID || rec.FormNumber != form {
				return derrors.Newf(derrors.CodeNotFound, "record %s not found", recordID)
			}
			return nil
		},
		func(rec *Record) {
			for name, v := range patch {
				rec.Fields[name] = v
			}
			for name := range patch {
				for _, d := range def.DerivedFor(name) {
					d.Recompute(rec.Fields)
				}
			}
			rec.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, coded(err)
	}
	if _, err := s.subs.MarkSaved(ctx, appID, form); err != nil {
		s.logger.Warn("mark saved failed after field update", "record_id", recordID, "error", err)
	}
	s.InvalidateSnapshot(ctx, appID, form)
	return rec, nil
}

// SaveField persists a single field value. This is the autosave commit path.
func (s *Service) SaveField(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*Record, error) {
	return s.UpdateFields(ctx, appID, form, recordID, schema.Fields{field: value})
}

// DeleteRecord removes a record and its children.
func (s *Service) DeleteRecord(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID) error {
	if err := s.subs.Guard(ctx, appID, form); err != nil {
		return err
	}
	if _, err := s.Get(ctx, appID, form, recordID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, recordID); err != nil {
		return coded(err)
	}
	s.InvalidateSnapshot(ctx, appID, form)
	return nil
}

// AddChild appends a child row to a record's family.
func (s *Service) AddChild(ctx context.Context, appID id.ApplicationID, form id.FormNumber, parentID id.RecordID, family string, fields schema.Fields) (*ChildRecord, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}
	childDef, ok := def.Child(family)
	if !ok {
		return nil, derrors.Newf(derrors.CodeBadRequest, "form %d has no %s entries", form, family)
	}
	if err := s.subs.Guard(ctx, appID, form); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, appID, form, parentID); err != nil {
		return nil, err
	}
	fields = fields.Clone()
	if err := schema.ValidateFields(childDef.Fields, fields); err != nil {
		return nil, err
	}

	child := NewChild(parentID, family, fields, requestcontext.Now(ctx))
	if err := s.store.CreateChild(ctx, child); err != nil {
		return nil, coded(err)
	}
	if _, err := s.subs.MarkSaved(ctx, appID, form); err != nil {
		s.logger.Warn("mark saved failed after child create", "child_id", child.ID, "error", err)
	}
	s.InvalidateSnapshot(ctx, appID, form)
	return child, nil
}

// DeleteChild removes one child row.
func (s *Service) DeleteChild(ctx context.Context, appID id.ApplicationID, form id.FormNumber, childID id.RecordID) error {
	if err := s.subs.Guard(ctx, appID, form); err != nil {
		return err
	}
	child, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return coded(err)
	}
	if _, err := s.Get(ctx, appID, form, child.ParentID); err != nil {
		return err
	}
	if err := s.store.DeleteChild(ctx, childID); err != nil {
		return coded(err)
	}
	s.InvalidateSnapshot(ctx, appID, form)
	return nil
}

// CountByForm reports the record count for a form, for submit preconditions.
func (s *Service) CountByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (int, error) {
	n, err := s.store.CountByForm(ctx, appID, form)
	if err != nil {
		return 0, coded(err)
	}
	return n, nil
}

// UnansweredQuestions lists project questions without a non-empty answer in
// the questionnaire form.
func (s *Service) UnansweredQuestions(ctx context.Context, appID id.ApplicationID) ([]string, error) {
	checker := NewQuestionChecker(s.store, s.questions, s.projects)
	return checker.UnansweredQuestions(ctx, appID)
}

// QuestionChecker answers the questionnaire submit precondition straight
// from the stores, so the submission service can depend on it without a
// cycle through this package's Service.
type QuestionChecker struct {
	store     Store
	questions questionnaire.Store
	projects  ProjectResolver
}

func NewQuestionChecker(store Store, questions questionnaire.Store, projects ProjectResolver) *QuestionChecker {
	return &QuestionChecker{store: store, questions: questions, projects: projects}
}

func (c *QuestionChecker) UnansweredQuestions(ctx context.Context, appID id.ApplicationID) ([]string, error) {
	projectID, err := c.projects.ProjectOf(ctx, appID)
	if err != nil {
		return nil, coded(err)
	}
	questions, err := c.questions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, coded(err)
	}
	if len(questions) == 0 {
		return nil, nil
	}

	recs, err := c.store.ListByForm(ctx, appID, id.FormQuestionnaire)
	if err != nil {
		return nil, coded(err)
	}
	answered := make(map[string]bool, len(recs))
	for _, rec := range recs {
		qid := rec.Fields.Get("question_id").Text()
		if qid == "" {
			continue
		}
		if rec.Fields.Get("answer").Text() != "" {
			answered[qid] = true
		}
	}

	var missing []string
	for _, q := range questions {
		if !answered[q.ID.String()] {
			missing = append(missing, q.ID.String())
		}
	}
	return missing, nil
}

// RecordWithChildren is a record plus its child rows grouped by family.
type RecordWithChildren struct {
	*Record
	Children map[string][]*ChildRecord `json:"children,omitempty"`
}

// FormData is everything a form screen needs in one load.
type FormData struct {
	FormNumber   id.FormNumber              `json:"form_number"`
	Submission   *submission.FormSubmission `json:"form_submission"`
	Records      []*RecordWithChildren      `json:"records"`
	Templates    map[string][]string        `json:"templates,omitempty"`
	Requirements []requirements.Status      `json:"requirements,omitempty"`
	Questions    []questionnaire.Question   `json:"questions,omitempty"`
}

// FormData assembles the snapshot for one form, creating the submission row
// on first access. Snapshots are cached briefly when a cache is configured.
func (s *Service) FormData(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormData, error) {
	def, err := schema.Form(form)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, snapshotKey(appID, form)).Bytes(); err == nil {
			var data FormData
			if err := json.Unmarshal(cached, &data); err == nil {
				return &data, nil
			}
		}
	}

	sub, err := s.subs.Ensure(ctx, appID, form)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.ListByForm(ctx, appID, form)
	if err != nil {
		return nil, coded(err)
	}

	data := &FormData{
		FormNumber: form,
		Submission: sub,
		Records:    make([]*RecordWithChildren, 0, len(recs)),
	}
	for _, rec := range recs {
		item := &RecordWithChildren{Record: rec}
		if len(def.Children) > 0 {
			children, err := s.store.ListChildren(ctx, rec.ID)
			if err != nil {
				return nil, coded(err)
			}
			if len(children) > 0 {
				item.Children = make(map[string][]*ChildRecord)
				for _, child := range children {
					item.Children[child.Family] = append(item.Children[child.Family], child)
				}
			}
		}
		data.Records = append(data.Records, item)
	}

	for _, fd := range def.Fields {
		if fd.Type != schema.TypeTemplateChoice {
			continue
		}
		names, err := s.templates.Names(ctx, fd.Templates)
		if err != nil {
			return nil, coded(err)
		}
		if data.Templates == nil {
			data.Templates = make(map[string][]string)
		}
		data.Templates[string(fd.Templates)] = names
	}

	if requirementsApply(form) {
		projectID, err := s.projects.ProjectOf(ctx, appID)
		if err != nil {
			return nil, coded(err)
		}
		reqs, err := s.requirements.ListByProject(ctx, projectID)
		if err != nil {
			return nil, coded(err)
		}
		fieldMaps := make([]schema.Fields, 0, len(recs))
		for _, rec := range recs {
			fieldMaps = append(fieldMaps, rec.Fields)
		}
		data.Requirements = requirements.Evaluate(form, reqs, fieldMaps)
	}

	if form == id.FormQuestionnaire {
		projectID, err := s.projects.ProjectOf(ctx, appID)
		if err != nil {
			return nil, coded(err)
		}
		questions, err := s.questions.ListByProject(ctx, projectID)
		if err != nil {
			return nil, coded(err)
		}
		data.Questions = questions
	}

	if s.cache != nil {
		if payload, err := json.Marshal(data); err == nil {
			if err := s.cache.Set(ctx, snapshotKey(appID, form), payload, s.snapshotTTL).Err(); err != nil {
				s.logger.Warn("snapshot cache write failed", "form", form, "error", err)
			}
		}
	}
	return data, nil
}

// InvalidateSnapshot drops the cached snapshot for one form. Called from
// every mutation path, and from submit since lock state is part of the
// snapshot.
func (s *Service) InvalidateSnapshot(ctx context.Context, appID id.ApplicationID, form id.FormNumber) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotKey(appID, form)).Err(); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", "form", form, "error", err)
	}
}

func snapshotKey(appID id.ApplicationID, form id.FormNumber) string {
	return fmt.Sprintf("formdata:%s:%d", appID, form)
}

// requirementsApply reports whether the form has project requirements to
// evaluate against.
func requirementsApply(form id.FormNumber) bool {
	switch form {
	case id.FormManagementPersonnel, id.FormManpower, id.FormEquipmentTools:
		return true
	}
	return false
}

// resolveChoices canonicalizes template-choice fields against their template
// sets. Matching entries take the template spelling; everything else is kept
// and tagged custom.
func (s *Service) resolveChoices(ctx context.Context, def *schema.FormDef, fields schema.Fields) error {
	for _, fd := range def.Fields {
		if fd.Type != schema.TypeTemplateChoice {
			continue
		}
		v, ok := fields[fd.Name]
		if !ok || v.IsEmpty() {
			continue
		}
		raw := fieldText(fields, fd.Name)
		if raw == "" {
			continue
		}
		set, err := s.templates.Set(ctx, fd.Templates)
		if err != nil {
			return coded(err)
		}
		fields[fd.Name] = schema.Choice(set.Resolve(raw))
	}
	return nil
}

// checkUnique enforces one-record-per-key fields, such as one profile per
// ongoing project. The self record is excluded so a no-op rewrite passes.
func (s *Service) checkUnique(ctx context.Context, appID id.ApplicationID, def *schema.FormDef, fields schema.Fields, self id.RecordID) error {
	if def.UniqueField == "" {
		return nil
	}
	value := fieldText(fields, def.UniqueField)
	if value == "" {
		return nil
	}
	existing, err := s.store.FindByFieldText(ctx, appID, def.Number, def.UniqueField, value)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return coded(err)
	}
	if existing.ID == self {
		return nil
	}
	return derrors.Newf(derrors.CodeConflict, "a %s for this %s already exists", def.RecordName, def.UniqueField)
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
