package application

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

// PostgresStore persists applications in the vendor_applications table. The
// (vendor_id, project_id) pair is unique.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const applicationColumns = `id, vendor_id, project_id, status, submitted_at,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, app *Application) error {
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO vendor_applications (`+applicationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID.String(), app.VendorID.String(), app.ProjectID.String(),
		string(app.Status), app.SubmittedAt, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("application for project %s: %w", app.ProjectID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, appID id.ApplicationID) (*Application, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM vendor_applications WHERE id = $1`,
		appID.String())
	return scanApplication(row)
}

func (s *PostgresStore) ListByVendor(ctx context.Context, vendorID id.VendorID) ([]*Application, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+applicationColumns+`
		   FROM vendor_applications
		  WHERE vendor_id = $1
		  ORDER BY created_at, id`,
		vendorID.String())
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, appID id.ApplicationID,
	validate func(*Application) error,
	mutate func(*Application)) (*Application, error) {

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application tx: %w", err)
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	row := dbtx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+`
		   FROM vendor_applications
		  WHERE id = $1
		  FOR UPDATE`,
		appID.String())
	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}

	if err := validate(app); err != nil {
		return app, err
	}
	mutate(app)

	_, err = dbtx.ExecContext(ctx,
		`UPDATE vendor_applications
		    SET status = $1, submitted_at = $2, updated_at = $3
		  WHERE id = $4`,
		string(app.Status), app.SubmittedAt, app.UpdatedAt, app.ID.String())
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application tx: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) Delete(ctx context.Context, appID id.ApplicationID) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`DELETE FROM vendor_applications WHERE id = $1`, appID.String())
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var (
		app         Application
		rawID       string
		rawVendor   string
		rawProject  string
		status      string
		submittedAt sql.NullTime
	)
	err := row.Scan(&rawID, &rawVendor, &rawProject, &status,
		&submittedAt, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	if app.ID, err = id.ParseApplicationID(rawID); err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	if app.VendorID, err = id.ParseVendorID(rawVendor); err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	if app.ProjectID, err = id.ParseProjectID(rawProject); err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.Status = Status(status)
	if submittedAt.Valid {
		app.SubmittedAt = &submittedAt.Time
	}
	return &app, nil
}
