package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"prequal/internal/forms/schema"
	"prequal/internal/questionnaire"
	"prequal/internal/records"
	"prequal/internal/requirements"
	"prequal/internal/submission"
	"prequal/internal/templates"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/requestcontext"
)

type persisterFunc func(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*records.Record, error)

func (f persisterFunc) SaveField(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*records.Record, error) {
	return f(ctx, appID, form, recordID, field, value)
}

type stubProjects struct {
	project id.ProjectID
}

func (p *stubProjects) ProjectOf(_ context.Context, _ id.ApplicationID) (id.ProjectID, error) {
	return p.project, nil
}

type CoordinatorSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	appID id.ApplicationID
	form  *schema.FormDef
	subs  *submission.Service
	svc   *records.Service
	store *Store
	rec   *records.Record
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.appID = id.NewApplicationID()

	var err error
	s.form, err = schema.Form(id.FormOngoingProjects)
	s.Require().NoError(err)

	recStore := records.NewInMemory()
	qStore := questionnaire.NewInMemory()
	projects := &stubProjects{project: id.NewProjectID()}
	checker := records.NewQuestionChecker(recStore, qStore, projects)
	s.subs = submission.NewService(submission.NewInMemory(), recStore, checker)
	s.svc = records.NewService(recStore, s.subs, templates.New(templates.NewInMemory()),
		requirements.NewInMemory(), qStore, projects)

	s.rec, err = s.svc.CreateRecord(s.ctx, s.appID, id.FormOngoingProjects, schema.Fields{
		"project_field":      schema.Text("Similar"),
		"client_name":        schema.Text("Red Sea Development Co"),
		"project_title":      schema.Text("Marina breakwater"),
		"contract_value_sar": schema.Number(decimal.RequireFromString("100000")),
		"percent_completion": schema.Number(decimal.RequireFromString("45")),
	})
	s.Require().NoError(err)

	s.store = NewStore(s.form)
}

func (s *CoordinatorSuite) coordinator(p Persister, opts ...Option) *Coordinator {
	if p == nil {
		p = s.svc
	}
	c := NewCoordinator(s.appID, s.form, s.store, p, s.svc, opts...)
	s.Require().NoError(c.Bootstrap(s.ctx))
	return c
}

func (s *CoordinatorSuite) TestEditAppliesOptimisticallyAndConfirms() {
	c := s.coordinator(nil, WithSavedIndicatorTTL(10*time.Millisecond))

	cmd, err := c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("NEOM"))
	s.Require().NoError(err)

	// Visible in the mirror before the save resolves.
	rec, ok := s.store.Record(s.rec.ID)
	s.Require().True(ok)
	s.Equal("NEOM", rec.Fields.Get("client_name").Text())

	c.Flush()
	s.Equal(StatusSaved, s.store.FieldStatus(s.rec.ID, "client_name"))

	// The saved indicator is transient.
	s.Eventually(func() bool {
		return s.store.FieldStatus(s.rec.ID, "client_name") == StatusIdle
	}, time.Second, 5*time.Millisecond)

	// And the server really has it.
	server, err := s.svc.Get(s.ctx, s.appID, id.FormOngoingProjects, s.rec.ID)
	s.Require().NoError(err)
	s.Equal("NEOM", server.Fields.Get("client_name").Text())
	s.Equal(cmd.NewValue.Text(), server.Fields.Get("client_name").Text())
}

func (s *CoordinatorSuite) TestEditRecomputesDerivedLocally() {
	c := s.coordinator(nil)

	_, err := c.Edit(s.ctx, s.rec.ID, "percent_completion", schema.Number(decimal.RequireFromString("50")))
	s.Require().NoError(err)

	rec, ok := s.store.Record(s.rec.ID)
	s.Require().True(ok)
	n, numOK := rec.Fields.Get("completed_value_sar").Number()
	s.Require().True(numOK, "derived value present before the save resolves")
	s.Equal("50000.00", n.StringFixed(2))

	c.Flush()
	server, err := s.svc.Get(s.ctx, s.appID, id.FormOngoingProjects, s.rec.ID)
	s.Require().NoError(err)
	n, numOK = server.Fields.Get("completed_value_sar").Number()
	s.Require().True(numOK)
	s.Equal("50000.00", n.StringFixed(2))
}

func (s *CoordinatorSuite) TestLockedFormRejectsEditsLocally() {
	c := s.coordinator(nil)
	_, err := s.subs.Submit(s.ctx, s.appID, id.FormOngoingProjects)
	s.Require().NoError(err)
	s.Require().NoError(c.Bootstrap(s.ctx))

	_, err = c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("Mallory"))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeLocked))

	rec, ok := s.store.Record(s.rec.ID)
	s.Require().True(ok)
	s.Equal("Red Sea Development Co", rec.Fields.Get("client_name").Text(), "store unchanged")
}

func (s *CoordinatorSuite) TestValidationRejectedBeforeApply() {
	c := s.coordinator(nil)

	_, err := c.Edit(s.ctx, s.rec.ID, "percent_completion", schema.Number(decimal.RequireFromString("120")))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeValidation))

	rec, _ := s.store.Record(s.rec.ID)
	n, _ := rec.Fields.Get("percent_completion").Number()
	s.Equal("45", n.String(), "rejected edit never touches the mirror")
}

func (s *CoordinatorSuite) TestTransientFailureRevertsScalarField() {
	failing := persisterFunc(func(context.Context, id.ApplicationID, id.FormNumber, id.RecordID, string, schema.Value) (*records.Record, error) {
		return nil, derrors.New(derrors.CodeUnavailable, "storage unavailable")
	})
	c := s.coordinator(failing)

	_, err := c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("NEOM"))
	s.Require().NoError(err)
	c.Flush()

	rec, _ := s.store.Record(s.rec.ID)
	s.Equal("Red Sea Development Co", rec.Fields.Get("client_name").Text(), "reverted to last known good")
	s.Equal(StatusFailed, s.store.FieldStatus(s.rec.ID, "client_name"))
}

func (s *CoordinatorSuite) TestHighStalenessFailureReloads() {
	failing := persisterFunc(func(context.Context, id.ApplicationID, id.FormNumber, id.RecordID, string, schema.Value) (*records.Record, error) {
		return nil, derrors.New(derrors.CodeUnavailable, "storage unavailable")
	})
	c := s.coordinator(failing)

	// contract_value_sar is a derived input, so its failure policy is a
	// full reload rather than a local revert.
	_, err := c.Edit(s.ctx, s.rec.ID, "contract_value_sar", schema.Number(decimal.RequireFromString("999999")))
	s.Require().NoError(err)
	c.Flush()

	rec, _ := s.store.Record(s.rec.ID)
	n, _ := rec.Fields.Get("contract_value_sar").Number()
	s.Equal("100000", n.String(), "reload restored server truth")
	n, _ = rec.Fields.Get("completed_value_sar").Number()
	s.Equal("45000.00", n.StringFixed(2))
}

func (s *CoordinatorSuite) TestServerLockRaceMarksStoreLocked() {
	locked := persisterFunc(func(context.Context, id.ApplicationID, id.FormNumber, id.RecordID, string, schema.Value) (*records.Record, error) {
		return nil, derrors.New(derrors.CodeLocked, "form 2 is locked")
	})
	c := s.coordinator(locked)

	_, err := c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("NEOM"))
	s.Require().NoError(err)
	c.Flush()

	rec, _ := s.store.Record(s.rec.ID)
	s.Equal("Red Sea Development Co", rec.Fields.Get("client_name").Text())
	s.True(s.store.Locked(), "lock learned from the rejected save")

	_, err = c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("Again"))
	s.True(derrors.HasCode(err, derrors.CodeLocked))
}

func (s *CoordinatorSuite) TestOutOfOrderFieldSavesBothLand() {
	// The first save is held until the second completes, so responses
	// arrive in reverse issue order.
	var mu sync.Mutex
	firstGate := make(chan struct{})
	calls := 0
	slow := persisterFunc(func(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*records.Record, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-firstGate
		}
		rec, err := s.svc.SaveField(ctx, appID, form, recordID, field, value)
		if !first {
			close(firstGate)
		}
		return rec, err
	})
	c := s.coordinator(slow)

	_, err := c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("NEOM"))
	s.Require().NoError(err)
	_, err = c.Edit(s.ctx, s.rec.ID, "project_title", schema.Text("Seawall phase 2"))
	s.Require().NoError(err)
	c.Flush()

	rec, _ := s.store.Record(s.rec.ID)
	s.Equal("NEOM", rec.Fields.Get("client_name").Text())
	s.Equal("Seawall phase 2", rec.Fields.Get("project_title").Text())

	server, err := s.svc.Get(s.ctx, s.appID, id.FormOngoingProjects, s.rec.ID)
	s.Require().NoError(err)
	s.Equal("NEOM", server.Fields.Get("client_name").Text())
	s.Equal("Seawall phase 2", server.Fields.Get("project_title").Text())
}

func (s *CoordinatorSuite) TestLaterEditSupersedesFailedEarlierSave() {
	// First save fails slowly; by then a second edit owns the field, so
	// the failure must not revert the newer value.
	firstDone := make(chan struct{})
	secondIssued := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	p := persisterFunc(func(ctx context.Context, appID id.ApplicationID, form id.FormNumber, recordID id.RecordID, field string, value schema.Value) (*records.Record, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-secondIssued
			defer close(firstDone)
			return nil, derrors.New(derrors.CodeUnavailable, "storage unavailable")
		}
		return s.svc.SaveField(ctx, appID, form, recordID, field, value)
	})
	c := s.coordinator(p)

	_, err := c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("first value"))
	s.Require().NoError(err)
	_, err = c.Edit(s.ctx, s.rec.ID, "client_name", schema.Text("second value"))
	s.Require().NoError(err)
	close(secondIssued)
	<-firstDone
	c.Flush()

	rec, _ := s.store.Record(s.rec.ID)
	s.Equal("second value", rec.Fields.Get("client_name").Text(),
		"stale failure must not clobber the newer edit")

	server, err := s.svc.Get(s.ctx, s.appID, id.FormOngoingProjects, s.rec.ID)
	s.Require().NoError(err)
	s.Equal("second value", server.Fields.Get("client_name").Text())
}
