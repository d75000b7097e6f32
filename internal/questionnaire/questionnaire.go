// Package questionnaire supplies the project's question bank for the
// questionnaire form. Questions are defined by the project owner and are
// read-only here; vendor answers live in form records.
package questionnaire

import (
	"context"

	id "prequal/pkg/domain"
)

// Question is one yes/no or free-text question the project asks applicants.
type Question struct {
	ID       id.QuestionID `json:"id"`
	Text     string        `json:"text"`
	Ordering int           `json:"ordering"`
}

// Store lists a project's questions in display order.
type Store interface {
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]Question, error)
}
