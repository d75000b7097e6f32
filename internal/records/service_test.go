package records

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"prequal/internal/forms/schema"
	"prequal/internal/questionnaire"
	"prequal/internal/requirements"
	"prequal/internal/submission"
	"prequal/internal/templates"
	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/requestcontext"
)

type stubProjects struct {
	project id.ProjectID
}

func (p *stubProjects) ProjectOf(_ context.Context, _ id.ApplicationID) (id.ProjectID, error) {
	return p.project, nil
}

type RecordsSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	appID     id.ApplicationID
	projectID id.ProjectID
	store     *InMemoryStore
	reqStore  *requirements.InMemoryStore
	qStore    *questionnaire.InMemoryStore
	subs      *submission.Service
	svc       *Service
}

func TestRecordsSuite(t *testing.T) {
	suite.Run(t, new(RecordsSuite))
}

func (s *RecordsSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.appID = id.NewApplicationID()
	s.projectID = id.NewProjectID()

	s.store = NewInMemory()
	tmplStore := templates.NewInMemory()
	tmplStore.Seed(schema.TemplatePositions, []string{"Project Manager", "Site Engineer"})
	tmplStore.Seed(schema.TemplateCrafts, []string{"Welder", "Electrician"})
	tmplStore.Seed(schema.TemplateEquipmentTypes, []string{"Tower Crane", "Excavator"})
	tmpl := templates.New(tmplStore)

	s.reqStore = requirements.NewInMemory()
	s.qStore = questionnaire.NewInMemory()
	projects := &stubProjects{project: s.projectID}

	checker := NewQuestionChecker(s.store, s.qStore, projects)
	s.subs = submission.NewService(submission.NewInMemory(), s.store, checker)
	s.svc = NewService(s.store, s.subs, tmpl, s.reqStore, s.qStore, projects)
}

func (s *RecordsSuite) createOngoingProject(value, pct string) *Record {
	fields := schema.Fields{
		"project_field": schema.Text("Similar"),
		"client_name":   schema.Text("Red Sea Development Co"),
		"project_title": schema.Text("Marina breakwater"),
	}
	if value != "" {
		fields["contract_value_sar"] = schema.Number(decimal.RequireFromString(value))
	}
	if pct != "" {
		fields["percent_completion"] = schema.Number(decimal.RequireFromString(pct))
	}
	rec, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormOngoingProjects, fields)
	s.Require().NoError(err)
	return rec
}

func (s *RecordsSuite) TestCreateRecord() {
	s.Run("computes the derived completed value", func() {
		rec := s.createOngoingProject("100000", "45")
		got, ok := rec.Fields.Get("completed_value_sar").Number()
		s.Require().True(ok)
		s.Equal("45000.00", got.StringFixed(2))
	})

	s.Run("leaves the derived value blank until both inputs exist", func() {
		rec := s.createOngoingProject("250000", "")
		s.True(rec.Fields.Get("completed_value_sar").IsEmpty())
	})

	s.Run("rejects missing required fields", func() {
		_, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormOngoingProjects, schema.Fields{
			"client_name": schema.Text("Acme"),
		})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
		s.Contains(derrors.ItemsOf(err), "project_field")
		s.Contains(derrors.ItemsOf(err), "project_title")
	})

	s.Run("rejects out-of-range percent", func() {
		fields := schema.Fields{
			"project_field":      schema.Text("Similar"),
			"client_name":        schema.Text("Acme"),
			"project_title":      schema.Text("Road"),
			"percent_completion": schema.Number(decimal.RequireFromString("101")),
		}
		_, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormOngoingProjects, fields)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("resolves template choices case-insensitively", func() {
		rec, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormManagementPersonnel, schema.Fields{
			"full_name": schema.Text("Ahmed Al-Rashid"),
			"position":  schema.Text("project manager"),
		})
		s.Require().NoError(err)
		c, ok := rec.Fields.Get("position").Choice()
		s.Require().True(ok)
		s.Equal("Project Manager", c.Name)
		s.False(c.Custom)
	})

	s.Run("keeps unmatched choices as custom", func() {
		rec, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormManagementPersonnel, schema.Fields{
			"full_name": schema.Text("Dana Haddad"),
			"position":  schema.Text("Bridge Painter"),
		})
		s.Require().NoError(err)
		c, ok := rec.Fields.Get("position").Choice()
		s.Require().True(ok)
		s.Equal("Bridge Painter", c.Name)
		s.True(c.Custom)
	})

	s.Run("stamps last_saved_at on the form", func() {
		s.createOngoingProject("1000", "10")
		sub, err := s.subs.Ensure(s.ctx, s.appID, id.FormOngoingProjects)
		s.Require().NoError(err)
		s.Require().NotNil(sub.LastSavedAt)
		s.Equal(s.now, *sub.LastSavedAt)
	})
}

func (s *RecordsSuite) TestUniqueField() {
	profile := schema.Fields{
		"ongoing_project_id": schema.Text("proj-abc"),
		"client_name":        schema.Text("Acme"),
	}

	first, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormProjectProfiles, profile)
	s.Require().NoError(err)

	s.Run("second profile for the same project conflicts", func() {
		_, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormProjectProfiles, profile)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeConflict))
	})

	s.Run("rewriting the same value on the same record passes", func() {
		_, err := s.svc.UpdateFields(s.ctx, s.appID, id.FormProjectProfiles, first.ID, schema.Fields{
			"ongoing_project_id": schema.Text("proj-abc"),
		})
		s.NoError(err)
	})

	s.Run("moving to a taken value conflicts", func() {
		other, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormProjectProfiles, schema.Fields{
			"ongoing_project_id": schema.Text("proj-def"),
		})
		s.Require().NoError(err)

		_, err = s.svc.UpdateFields(s.ctx, s.appID, id.FormProjectProfiles, other.ID, schema.Fields{
			"ongoing_project_id": schema.Text("PROJ-ABC"),
		})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeConflict), "uniqueness ignores case")
	})
}

func (s *RecordsSuite) TestUpdateFields() {
	rec := s.createOngoingProject("100000", "45")

	s.Run("partial patch recomputes dependent fields", func() {
		got, err := s.svc.UpdateFields(s.ctx, s.appID, id.FormOngoingProjects, rec.ID, schema.Fields{
			"percent_completion": schema.Number(decimal.RequireFromString("50")),
		})
		s.Require().NoError(err)
		n, ok := got.Fields.Get("completed_value_sar").Number()
		s.Require().True(ok)
		s.Equal("50000.00", n.StringFixed(2))
		s.Equal("Marina breakwater", got.Fields.Get("project_title").Text(), "untouched fields survive")
	})

	s.Run("clearing an input blanks the derived field", func() {
		got, err := s.svc.UpdateFields(s.ctx, s.appID, id.FormOngoingProjects, rec.ID, schema.Fields{
			"contract_value_sar": {},
		})
		s.Require().NoError(err)
		s.True(got.Fields.Get("completed_value_sar").IsEmpty())
	})

	s.Run("unknown fields are rejected with offenders listed", func() {
		_, err := s.svc.UpdateFields(s.ctx, s.appID, id.FormOngoingProjects, rec.ID, schema.Fields{
			"no_such_field": schema.Text("x"),
		})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
		s.Equal([]string{"no_such_field"}, derrors.ItemsOf(err))
	})

	s.Run("records of other applications are invisible", func() {
		_, err := s.svc.UpdateFields(s.ctx, id.NewApplicationID(), id.FormOngoingProjects, rec.ID, schema.Fields{
			"client_name": schema.Text("Mallory"),
		})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *RecordsSuite) TestLockGuard() {
	rec := s.createOngoingProject("100000", "45")
	_, err := s.subs.Submit(s.ctx, s.appID, id.FormOngoingProjects)
	s.Require().NoError(err)

	_, err = s.svc.CreateRecord(s.ctx, s.appID, id.FormOngoingProjects, schema.Fields{
		"project_field": schema.Text("Similar"),
		"client_name":   schema.Text("Acme"),
		"project_title": schema.Text("Another"),
	})
	s.True(derrors.HasCode(err, derrors.CodeLocked))

	_, err = s.svc.UpdateFields(s.ctx, s.appID, id.FormOngoingProjects, rec.ID, schema.Fields{
		"client_name": schema.Text("Changed"),
	})
	s.True(derrors.HasCode(err, derrors.CodeLocked))

	err = s.svc.DeleteRecord(s.ctx, s.appID, id.FormOngoingProjects, rec.ID)
	s.True(derrors.HasCode(err, derrors.CodeLocked))
}

func (s *RecordsSuite) TestChildren() {
	profile, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormProjectProfiles, schema.Fields{
		"ongoing_project_id": schema.Text("proj-abc"),
	})
	s.Require().NoError(err)

	s.Run("adds and lists child rows by family", func() {
		_, err := s.svc.AddChild(s.ctx, s.appID, id.FormProjectProfiles, profile.ID, "personnel", schema.Fields{
			"position": schema.Text("Foreman"),
			"name":     schema.Text("Omar"),
		})
		s.Require().NoError(err)
		_, err = s.svc.AddChild(s.ctx, s.appID, id.FormProjectProfiles, profile.ID, "equipment", schema.Fields{
			"equipment_name": schema.Text("Crane"),
		})
		s.Require().NoError(err)

		data, err := s.svc.FormData(s.ctx, s.appID, id.FormProjectProfiles)
		s.Require().NoError(err)
		s.Require().Len(data.Records, 1)
		s.Len(data.Records[0].Children["personnel"], 1)
		s.Len(data.Records[0].Children["equipment"], 1)
	})

	s.Run("rejects unknown families", func() {
		_, err := s.svc.AddChild(s.ctx, s.appID, id.FormProjectProfiles, profile.ID, "vehicles", schema.Fields{})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeBadRequest))
	})

	s.Run("validates child fields", func() {
		_, err := s.svc.AddChild(s.ctx, s.appID, id.FormProjectProfiles, profile.ID, "personnel", schema.Fields{
			"name": schema.Text("Missing position"),
		})
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("deleting the record removes its children", func() {
		child, err := s.svc.AddChild(s.ctx, s.appID, id.FormProjectProfiles, profile.ID, "materials", schema.Fields{
			"material_name": schema.Text("Rebar"),
		})
		s.Require().NoError(err)

		s.Require().NoError(s.svc.DeleteRecord(s.ctx, s.appID, id.FormProjectProfiles, profile.ID))
		_, err = s.store.GetChild(s.ctx, child.ID)
		s.Require().Error(err)
	})
}

func (s *RecordsSuite) TestUnansweredQuestions() {
	q1, q2 := id.NewQuestionID(), id.NewQuestionID()
	s.qStore.Seed(s.projectID, []questionnaire.Question{
		{ID: q1, Text: "Have you been disqualified before?", Ordering: 1},
		{ID: q2, Text: "Do you hold ISO 9001?", Ordering: 2},
	})

	missing, err := s.svc.UnansweredQuestions(s.ctx, s.appID)
	s.Require().NoError(err)
	s.Len(missing, 2)

	_, err = s.svc.CreateRecord(s.ctx, s.appID, id.FormQuestionnaire, schema.Fields{
		"question_id": schema.Text(q1.String()),
		"answer":      schema.Text("No"),
	})
	s.Require().NoError(err)

	missing, err = s.svc.UnansweredQuestions(s.ctx, s.appID)
	s.Require().NoError(err)
	s.Equal([]string{q2.String()}, missing)
}

func (s *RecordsSuite) TestFormData() {
	s.Run("includes templates and requirement fulfillment", func() {
		s.reqStore.Seed(s.projectID, []requirements.Requirement{
			{Kind: schema.TemplatePositions, Name: "Project Manager", MinimumCount: 1},
		})
		_, err := s.svc.CreateRecord(s.ctx, s.appID, id.FormManagementPersonnel, schema.Fields{
			"full_name": schema.Text("Ahmed"),
			"position":  schema.Text("Project Manager"),
		})
		s.Require().NoError(err)

		data, err := s.svc.FormData(s.ctx, s.appID, id.FormManagementPersonnel)
		s.Require().NoError(err)
		s.Equal([]string{"Project Manager", "Site Engineer"}, data.Templates["positions"])
		s.Require().Len(data.Requirements, 1)
		s.True(data.Requirements[0].Met)
		s.Require().NotNil(data.Submission)
		s.False(data.Submission.IsLocked)
	})

	s.Run("questionnaire snapshot carries the question bank", func() {
		s.qStore.Seed(s.projectID, []questionnaire.Question{
			{ID: id.NewQuestionID(), Text: "Any ongoing litigation?", Ordering: 1},
		})
		data, err := s.svc.FormData(s.ctx, s.appID, id.FormQuestionnaire)
		s.Require().NoError(err)
		s.Len(data.Questions, 1)
	})
}

func (s *RecordsSuite) TestSnapshotCache() {
	mr := miniredis.RunT(s.T())
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.svc = NewService(s.store, s.subs, templates.New(templates.NewInMemory()),
		s.reqStore, s.qStore, &stubProjects{project: s.projectID},
		WithSnapshotCache(cache, time.Minute))

	rec := s.createOngoingProject("100000", "45")

	data, err := s.svc.FormData(s.ctx, s.appID, id.FormOngoingProjects)
	s.Require().NoError(err)
	s.Len(data.Records, 1)
	s.True(mr.Exists("formdata:" + s.appID.String() + ":2"))

	// A mutation drops the cached snapshot so the next read is fresh.
	_, err = s.svc.UpdateFields(s.ctx, s.appID, id.FormOngoingProjects, rec.ID, schema.Fields{
		"client_name": schema.Text("NEOM"),
	})
	s.Require().NoError(err)
	s.False(mr.Exists("formdata:" + s.appID.String() + ":2"))

	data, err = s.svc.FormData(s.ctx, s.appID, id.FormOngoingProjects)
	s.Require().NoError(err)
	s.Equal("NEOM", data.Records[0].Fields.Get("client_name").Text())
}
