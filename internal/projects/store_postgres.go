package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, projectID id.ProjectID) (*Project, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var (
		p     Project
		rawID string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at FROM projects WHERE id = $1`,
		projectID.String()).Scan(&rawID, &p.Name, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p.ID, err = id.ParseProjectID(rawID); err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Project, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, is_active, created_at FROM projects WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		var (
			p     Project
			rawID string
		)
		if err := rows.Scan(&rawID, &p.Name, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if p.ID, err = id.ParseProjectID(rawID); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
