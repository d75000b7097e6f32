package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"prequal/internal/forms/schema"
	"prequal/internal/forms/variant"
	"prequal/internal/platform/metrics"
	"prequal/internal/records"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
)

// Persister commits a single-field change. Implemented by the records
// service; the server applies last-write-wins per field.
type Persister interface {
	SaveField(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*records.Record, error)
}

// Reloader fetches a fresh snapshot when local state can no longer be
// trusted.
type Reloader interface {
	FormData(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*records.FormData, error)
}

// Command is the unit of work for one field edit.
type Command struct {
	RecordID id.RecordID
	Field    string
	OldValue schema.Value
	NewValue schema.Value
	Gen      uint64
}

// Coordinator drives the optimistic autosave protocol for one form view.
// Edits apply to the local store immediately and persist asynchronously;
// there is exactly one coordinator per store.
type Coordinator struct {
	appID     id.ApplicationID
	form      *schema.FormDef
	store     *Store
	persister Persister
	reloader  Reloader

	templates map[schema.TemplateKind]variant.TemplateSet
	savedTTL  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	wg sync.WaitGroup
}

type Option func(*Coordinator)

// WithSavedIndicatorTTL sets how long a confirmed save shows as "saved"
// before returning to idle.
func WithSavedIndicatorTTL(d time.Duration) Option {
	return func(c *Coordinator) { c.savedTTL = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func NewCoordinator(appID id.ApplicationID, form *schema.FormDef, store *Store, persister Persister, reloader Reloader, opts ...Option) *Coordinator {
	c := &Coordinator{
		appID:     appID,
		form:      form,
		store:     store,
		persister: persister,
		reloader:  reloader,
		templates: make(map[schema.TemplateKind]variant.TemplateSet),
		savedTTL:  2 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap loads the initial snapshot and the template sets for the form's
// categorical fields.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	data, err := c.reloader.FormData(ctx, c.appID, c.form.Number)
	if err != nil {
		return err
	}
	c.store.Load(data)
	for _, fd := range c.form.Fields {
		if fd.Type != schema.TypeTemplateChoice {
			continue
		}
		c.templates[fd.Templates] = variant.NewTemplateSet(data.Templates[string(fd.Templates)])
	}
	return nil
}

// Edit applies one field change optimistically and schedules its persist.
// Validation and the lock check happen synchronously; a rejected edit never
// touches the store.
func (c *Coordinator) Edit(ctx context.Context, recordID id.RecordID, field string, value schema.Value) (*Command, error) {
	if c.store.Locked() {
		return nil, derrors.Newf(derrors.CodeLocked, "form %d is locked", c.form.Number)
	}
	fd, ok := c.form.Field(field)
	if !ok {
		return nil, derrors.NewValidation("unknown field", field)
	}
	if fd.Type == schema.TypeTemplateChoice && !value.IsEmpty() {
		if set, ok := c.templates[fd.Templates]; ok {
			value = schema.Choice(set.Resolve(choiceText(value)))
		}
	}
	if err := schema.ValidateField(fd, value); err != nil {
		return nil, err
	}

	// Derived fields recompute locally before the save is even issued, so
	// the mirror renders consistently while the request is in flight.
	rec, ok := c.store.Record(recordID)
	if !ok {
		return nil, derrors.Newf(derrors.CodeNotFound, "record %s not found", recordID)
	}
	staged := rec.Fields.Clone()
	staged[field] = value
	changed := schema.Fields{field: value}
	for _, d := range c.form.DerivedFor(field) {
		d.Recompute(staged)
		changed[d.Target] = staged.Get(d.Target)
	}

	prev, gen, ok := c.store.beginEdit(recordID, field, changed)
	if !ok {
		return nil, derrors.Newf(derrors.CodeNotFound, "record %s not found", recordID)
	}
	cmd := &Command{
		RecordID: recordID,
		Field:    field,
		OldValue: prev.Get(field),
		NewValue: value,
		Gen:      gen,
	}

	c.wg.Add(1)
	go c.persist(ctx, cmd, fd, prev)
	return cmd, nil
}

// Flush waits for every in-flight save. Intended for tests and shutdown.
func (c *Coordinator) Flush() {
	c.wg.Wait()
}

func (c *Coordinator) persist(ctx context.Context, cmd *Command, fd schema.FieldDef, prev schema.Fields) {
	defer c.wg.Done()

	_, err := c.persister.SaveField(ctx, c.appID, c.form.Number, cmd.RecordID, cmd.Field, cmd.NewValue)
	if err == nil {
		if c.metrics != nil {
			c.metrics.FieldSaves.WithLabelValues(c.form.Number.String()).Inc()
		}
		if c.store.resolveEdit(cmd.RecordID, cmd.Field, cmd.Gen, StatusSaved) && c.savedTTL > 0 {
			time.AfterFunc(c.savedTTL, func() {
				c.store.expireSaved(cmd.RecordID, cmd.Field, cmd.Gen)
			})
		}
		return
	}

	if c.metrics != nil {
		c.metrics.FieldSaveFailures.WithLabelValues(c.form.Number.String()).Inc()
	}
	c.logger.Warn("field save failed",
		"record_id", cmd.RecordID,
		"field", cmd.Field,
		"error", err)

	switch {
	case derrors.HasCode(err, derrors.CodeLocked):
		// The form locked underneath us; reflect that and drop the value.
		c.store.markLocked()
		c.store.revert(cmd.RecordID, cmd.Field, cmd.Gen, prev)
	case derrors.HasCode(err, derrors.CodeConflict):
		// Conflicts mean local state diverged beyond one field.
		c.reload(ctx)
	case fd.HighStaleness:
		// Derived inputs and uniqueness keys are too risky to patch up
		// locally.
		c.reload(ctx)
	default:
		c.store.revert(cmd.RecordID, cmd.Field, cmd.Gen, prev)
	}
}

func (c *Coordinator) reload(ctx context.Context) {
	data, err := c.reloader.FormData(ctx, c.appID, c.form.Number)
	if err != nil {
		c.logger.Error("form reload failed", "form", c.form.Number, "error", err)
		return
	}
	c.store.Load(data)
}

func choiceText(v schema.Value) string {
	if c, ok := v.Choice(); ok {
		return c.Name
	}
	return v.Text()
}
