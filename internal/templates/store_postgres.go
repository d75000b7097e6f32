package templates

import (
	"context"
	"database/sql"
	"fmt"

	"prequal/internal/forms/schema"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore reads template entries from the template_entries table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, kind schema.TemplateKind) ([]string, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM template_entries WHERE kind = $1 AND is_active ORDER BY name`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list templates %s: %w", kind, sentinel.ErrUnavailable)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan template entry: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
