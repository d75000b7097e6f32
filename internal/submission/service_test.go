package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/audit"
	"prequal/pkg/requestcontext"
)

type stubCounter struct {
	counts map[id.FormNumber]int
}

func (c *stubCounter) CountByForm(_ context.Context, _ id.ApplicationID, form id.FormNumber) (int, error) {
	return c.counts[form], nil
}

type stubQuestions struct {
	missing []string
}

func (q *stubQuestions) UnansweredQuestions(_ context.Context, _ id.ApplicationID) ([]string, error) {
	return q.missing, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	appID     id.ApplicationID
	counter   *stubCounter
	questions *stubQuestions
	sink      *audit.InMemorySink
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.appID = id.NewApplicationID()
	s.counter = &stubCounter{counts: map[id.FormNumber]int{}}
	s.questions = &stubQuestions{}
	s.sink = audit.NewInMemorySink()
	s.svc = NewService(NewInMemory(), s.counter, s.questions,
		WithAudit(audit.NewPublisher(s.sink)))
}

func (s *ServiceSuite) TestEnsure() {
	s.Run("creates unlocked row on first access", func() {
		sub, err := s.svc.Ensure(s.ctx, s.appID, id.FormCompletedProjects)
		s.Require().NoError(err)
		s.False(sub.IsLocked)
		s.False(sub.IsComplete)
		s.Nil(sub.SubmittedAt)
		s.Equal(s.now, sub.CreatedAt)
	})

	s.Run("returns the same row on later access", func() {
		first, err := s.svc.Ensure(s.ctx, s.appID, id.FormManpower)
		s.Require().NoError(err)
		second, err := s.svc.Ensure(s.ctx, s.appID, id.FormManpower)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
	})

	s.Run("rejects unknown form numbers", func() {
		_, err := s.svc.Ensure(s.ctx, s.appID, id.FormNumber(9))
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestGuard() {
	s.Run("missing row is unlocked", func() {
		s.NoError(s.svc.Guard(s.ctx, s.appID, id.FormOngoingProjects))
	})

	s.Run("unlocked form passes", func() {
		_, err := s.svc.Ensure(s.ctx, s.appID, id.FormOngoingProjects)
		s.Require().NoError(err)
		s.NoError(s.svc.Guard(s.ctx, s.appID, id.FormOngoingProjects))
	})

	s.Run("locked form is rejected", func() {
		s.counter.counts[id.FormOngoingProjects] = 1
		_, err := s.svc.Submit(s.ctx, s.appID, id.FormOngoingProjects)
		s.Require().NoError(err)

		err = s.svc.Guard(s.ctx, s.appID, id.FormOngoingProjects)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeLocked))
	})
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("locks the form and stamps submitted_at", func() {
		s.counter.counts[id.FormManagementPersonnel] = 3
		sub, err := s.svc.Submit(s.ctx, s.appID, id.FormManagementPersonnel)
		s.Require().NoError(err)
		s.True(sub.IsLocked)
		s.True(sub.IsComplete)
		s.Require().NotNil(sub.SubmittedAt)
		s.Equal(s.now, *sub.SubmittedAt)

		events := s.sink.EventsByApplication(s.appID)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventFormSubmitted), events[0].Action)
	})

	s.Run("second submit is a no-op", func() {
		s.counter.counts[id.FormEquipmentTools] = 1
		first, err := s.svc.Submit(s.ctx, s.appID, id.FormEquipmentTools)
		s.Require().NoError(err)

		second, err := s.svc.Submit(s.ctx, s.appID, id.FormEquipmentTools)
		s.Require().NoError(err)
		s.Equal(first.SubmittedAt, second.SubmittedAt)
	})

	s.Run("empty form fails the record precondition", func() {
		_, err := s.svc.Submit(s.ctx, s.appID, id.FormCompletedProjects)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))

		sub, err := s.svc.Ensure(s.ctx, s.appID, id.FormCompletedProjects)
		s.Require().NoError(err)
		s.False(sub.IsLocked, "failed submit must not lock the form")
	})

	s.Run("questionnaire requires every question answered", func() {
		s.counter.counts[id.FormQuestionnaire] = 5
		s.questions.missing = []string{"q-7", "q-9"}

		_, err := s.svc.Submit(s.ctx, s.appID, id.FormQuestionnaire)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
		s.Equal([]string{"q-7", "q-9"}, derrors.ItemsOf(err))

		s.questions.missing = nil
		sub, err := s.svc.Submit(s.ctx, s.appID, id.FormQuestionnaire)
		s.Require().NoError(err)
		s.True(sub.IsLocked)
	})
}

func (s *ServiceSuite) TestMarkSaved() {
	s.Run("stamps last_saved_at", func() {
		sub, err := s.svc.MarkSaved(s.ctx, s.appID, id.FormManpower)
		s.Require().NoError(err)
		s.Require().NotNil(sub.LastSavedAt)
		s.Equal(s.now, *sub.LastSavedAt)
	})

	s.Run("rejected once the form is locked", func() {
		s.counter.counts[id.FormManpower] = 1
		_, err := s.svc.Submit(s.ctx, s.appID, id.FormManpower)
		s.Require().NoError(err)

		_, err = s.svc.MarkSaved(s.ctx, s.appID, id.FormManpower)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeLocked))
	})
}

func (s *ServiceSuite) TestAllLocked() {
	for _, form := range id.AllFormNumbers() {
		s.counter.counts[form] = 1
	}

	locked, err := s.svc.AllLocked(s.ctx, s.appID)
	s.Require().NoError(err)
	s.False(locked, "no form submitted yet")

	for _, form := range id.AllFormNumbers() {
		_, err := s.svc.Submit(s.ctx, s.appID, form)
		s.Require().NoError(err)
	}

	locked, err = s.svc.AllLocked(s.ctx, s.appID)
	s.Require().NoError(err)
	s.True(locked)
}
