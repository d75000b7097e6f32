package submission

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
	"prequal/pkg/platform/sentinel"
)

func submissionRows(sub *FormSubmission) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "application_id", "form_number", "is_locked", "is_complete",
		"last_saved_at", "submitted_at", "created_at", "updated_at",
	}).AddRow(
		sub.ID.String(), sub.ApplicationID.String(), int(sub.FormNumber),
		sub.IsLocked, sub.IsComplete, sub.LastSavedAt, sub.SubmittedAt,
		sub.CreatedAt, sub.UpdatedAt,
	)
}

func TestPostgresStoreFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	appID := id.NewApplicationID()
	sub := New(appID, id.FormManpower, now)

	mock.ExpectQuery(`(?s)SELECT .+ FROM form_submissions\s+WHERE application_id = \$1 AND form_number = \$2`).
		WithArgs(appID.String(), 6).
		WillReturnRows(submissionRows(sub))

	store := NewPostgres(db)
	got, err := store.Find(context.Background(), appID, id.FormManpower)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, id.FormManpower, got.FormNumber)
	assert.False(t, got.IsLocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFindMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	appID := id.NewApplicationID()
	mock.ExpectQuery(`(?s)SELECT .+ FROM form_submissions`).
		WithArgs(appID.String(), 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "application_id", "form_number", "is_locked", "is_complete",
			"last_saved_at", "submitted_at", "created_at", "updated_at",
		}))

	store := NewPostgres(db)
	_, err = store.Find(context.Background(), appID, id.FormCompletedProjects)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecuteCommitsMutation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	appID := id.NewApplicationID()
	sub := New(appID, id.FormQuestionnaire, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM form_submissions.+FOR UPDATE`).
		WithArgs(appID.String(), 8).
		WillReturnRows(submissionRows(sub))
	mock.ExpectExec(`UPDATE form_submissions`).
		WithArgs(true, true, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sub.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewPostgres(db)
	got, err := store.Execute(context.Background(), appID, id.FormQuestionnaire,
		func(s *FormSubmission) error { return s.CanSubmit() },
		func(s *FormSubmission) { s.ApplySubmit(now.Add(time.Minute)) },
	)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	require.NotNil(t, got.SubmittedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecuteRollsBackOnValidationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	appID := id.NewApplicationID()
	sub := New(appID, id.FormManpower, now)
	sub.ApplySubmit(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM form_submissions.+FOR UPDATE`).
		WithArgs(appID.String(), 6).
		WillReturnRows(submissionRows(sub))
	mock.ExpectRollback()

	store := NewPostgres(db)
	got, err := store.Execute(context.Background(), appID, id.FormManpower,
		func(s *FormSubmission) error { return s.CanSubmit() },
		func(s *FormSubmission) { s.TouchSaved(now) },
	)
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeLocked))
	require.NotNil(t, got, "current row returned for inspection")
	require.NoError(t, mock.ExpectationsWereMet())
}
