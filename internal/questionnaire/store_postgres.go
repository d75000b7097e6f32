package questionnaire

import (
	"context"
	"database/sql"
	"fmt"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore reads the question bank from the questionnaire_questions
// table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]Question, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT id, question_text, ordering
		   FROM questionnaire_questions
		  WHERE project_id = $1
		  ORDER BY ordering, id`,
		projectID.String())
	if err != nil {
		return nil, fmt.Errorf("list questions for project %s: %w", projectID, sentinel.ErrUnavailable)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var (
			raw string
			qn  Question
		)
		if err := rows.Scan(&raw, &qn.Text, &qn.Ordering); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if qn.ID, err = id.ParseQuestionID(raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, qn)
	}
	return questions, rows.Err()
}
