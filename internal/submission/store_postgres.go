package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore persists submission rows in the form_submissions table. The
// (application_id, form_number) pair is unique.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const submissionColumns = `id, application_id, form_number, is_locked, is_complete,
	last_saved_at, submitted_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *FormSubmission) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO form_submissions (`+submissionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID.String(), sub.ApplicationID.String(), int(sub.FormNumber),
		sub.IsLocked, sub.IsComplete, sub.LastSavedAt, sub.SubmittedAt,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("submission for form %d: %w", sub.FormNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+`
		   FROM form_submissions
		  WHERE application_id = $1 AND form_number = $2`,
		appID.String(), int(form))
	return scanSubmission(row)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*FormSubmission, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+submissionColumns+`
		   FROM form_submissions
		  WHERE application_id = $1
		  ORDER BY form_number`,
		appID.String())
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*FormSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, appID id.ApplicationID, form id.FormNumber,
	validate func(*FormSubmission) error,
	mutate func(*FormSubmission)) (*FormSubmission, error) {

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submission tx: %w", err)
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	row := dbtx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+`
		   FROM form_submissions
		  WHERE application_id = $1 AND form_number = $2
		  FOR UPDATE`,
		appID.String(), int(form))
	sub, err := scanSubmission(row)
	if err != nil {
		return nil, err
	}

	if err := validate(sub); err != nil {
		return sub, err
	}
	mutate(sub)

	_, err = dbtx.ExecContext(ctx,
		`UPDATE form_submissions
		    SET is_locked = $1, is_complete = $2, last_saved_at = $3,
		        submitted_at = $4, updated_at = $5
		  WHERE id = $6`,
		sub.IsLocked, sub.IsComplete, sub.LastSavedAt, sub.SubmittedAt,
		sub.UpdatedAt, sub.ID.String())
	if err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission tx: %w", err)
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*FormSubmission, error) {
	var (
		sub         FormSubmission
		rawID       string
		rawApp      string
		rawForm     int
		lastSavedAt sql.NullTime
		submittedAt sql.NullTime
	)
	err := row.Scan(&rawID, &rawApp, &rawForm, &sub.IsLocked, &sub.IsComplete,
		&lastSavedAt, &submittedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	if sub.ID, err = id.ParseSubmissionID(rawID); err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	if sub.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.FormNumber, err = id.ParseFormNumber(rawForm)
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	if lastSavedAt.Valid {
		sub.LastSavedAt = &lastSavedAt.Time
	}
	if submittedAt.Valid {
		sub.SubmittedAt = &submittedAt.Time
	}
	return &sub, nil
}
