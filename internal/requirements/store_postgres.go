package requirements

import (
	"context"
	"database/sql"
	"fmt"

	"prequal/internal/forms/schema"
	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore reads project requirements from the project_requirements
// table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]Requirement, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT kind, name, minimum_count
		   FROM project_requirements
		  WHERE project_id = $1
		  ORDER BY kind, name`,
		projectID.String())
	if err != nil {
		return nil, fmt.Errorf("list requirements for project %s: %w", projectID, sentinel.ErrUnavailable)
	}
	defer rows.Close()

	var reqs []Requirement
	for rows.Next() {
		var (
			kind string
			req  Requirement
		)
		if err := rows.Scan(&kind, &req.Name, &req.MinimumCount); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		req.Kind = schema.TemplateKind(kind)
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
