package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"prequal/internal/forms/schema"
	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
	"prequal/pkg/platform/tx"
)

// PostgresStore persists records in the form_records and form_child_records
// tables. Field maps are stored as jsonb.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}
	q := tx.QuerierFrom(ctx, s.db)
	_, err = q.ExecContext(ctx,
		`INSERT INTO form_records (id, application_id, form_number, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID.String(), rec.ApplicationID.String(), int(rec.FormNumber),
		payload, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, recordID id.RecordID) (*Record, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT id, application_id, form_number, fields, created_at, updated_at
		   FROM form_records
		  WHERE id = $1`,
		recordID.String())
	return scanRecord(row)
}

func (s *PostgresStore) ListByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Record, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT id, application_id, form_number, fields, created_at, updated_at
		   FROM form_records
		  WHERE application_id = $1 AND form_number = $2
		  ORDER BY created_at, id`,
		appID.String(), int(form))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByForm(ctx context.Context, appID id.ApplicationID, form id.FormNumber) (int, error) {
	q := tx.QuerierFrom(ctx, s.db)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM form_records WHERE application_id = $1 AND form_number = $2`,
		appID.String(), int(form)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) FindByFieldText(ctx context.Context, appID id.ApplicationID, form id.FormNumber, field, value string) (*Record, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT id, application_id, form_number, fields, created_at, updated_at
		   FROM form_records
		  WHERE application_id = $1 AND form_number = $2 AND lower(fields->>$3) = lower($4)
		  LIMIT 1`,
		appID.String(), int(form), field, value)
	return scanRecord(row)
}

func (s *PostgresStore) Execute(ctx context.Context, recordID id.RecordID,
	validate func(*Record) error,
	mutate func(*Record)) (*Record, error) {

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	row := dbtx.QueryRowContext(ctx,
		`SELECT id, application_id, form_number, fields, created_at, updated_at
		   FROM form_records
		  WHERE id = $1
		  FOR UPDATE`,
		recordID.String())
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	if err := validate(rec); err != nil {
		return rec, err
	}
	mutate(rec)

	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode record fields: %w", err)
	}
	_, err = dbtx.ExecContext(ctx,
		`UPDATE form_records SET fields = $1, updated_at = $2 WHERE id = $3`,
		payload, rec.UpdatedAt, rec.ID.String())
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record tx: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, recordID id.RecordID) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record delete tx: %w", err)
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	if _, err := dbtx.ExecContext(ctx,
		`DELETE FROM form_child_records WHERE parent_id = $1`, recordID.String()); err != nil {
		return fmt.Errorf("delete child records: %w", err)
	}
	res, err := dbtx.ExecContext(ctx,
		`DELETE FROM form_records WHERE id = $1`, recordID.String())
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return dbtx.Commit()
}

func (s *PostgresStore) CreateChild(ctx context.Context, child *ChildRecord) error {
	payload, err := json.Marshal(child.Fields)
	if err != nil {
		return fmt.Errorf("encode child fields: %w", err)
	}
	q := tx.QuerierFrom(ctx, s.db)
	_, err = q.ExecContext(ctx,
		`INSERT INTO form_child_records (id, parent_id, family, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		child.ID.String(), child.ParentID.String(), child.Family,
		payload, child.CreatedAt, child.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create child record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChild(ctx context.Context, childID id.RecordID) (*ChildRecord, error) {
	q := tx.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT id, parent_id, family, fields, created_at, updated_at
		   FROM form_child_records
		  WHERE id = $1`,
		childID.String())
	return scanChild(row)
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID id.RecordID) ([]*ChildRecord, error) {
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT id, parent_id, family, fields, created_at, updated_at
		   FROM form_child_records
		  WHERE parent_id = $1
		  ORDER BY created_at, id`,
		parentID.String())
	if err != nil {
		return nil, fmt.Errorf("list child records: %w", err)
	}
	defer rows.Close()

	var out []*ChildRecord
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteChild(ctx context.Context, childID id.RecordID) error {
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`DELETE FROM form_child_records WHERE id = $1`, childID.String())
	if err != nil {
		return fmt.Errorf("delete child record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("child record %s: %w", childID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		rawID   string
		rawApp  string
		rawForm int
		payload []byte
	)
	err := row.Scan(&rawID, &rawApp, &rawForm, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	if rec.ID, err = id.ParseRecordID(rawID); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if rec.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if rec.FormNumber, err = id.ParseFormNumber(rawForm); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.Fields = make(schema.Fields)
	if err := json.Unmarshal(payload, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode record fields: %w", err)
	}
	return &rec, nil
}

func scanChild(row rowScanner) (*ChildRecord, error) {
	var (
		child     ChildRecord
		rawID     string
		rawParent string
		payload   []byte
	)
	err := row.Scan(&rawID, &rawParent, &child.Family, &payload, &child.CreatedAt, &child.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("child record: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan child record: %w", err)
	}

	if child.ID, err = id.ParseRecordID(rawID); err != nil {
		return nil, fmt.Errorf("scan child record: %w", err)
	}
	if child.ParentID, err = id.ParseRecordID(rawParent); err != nil {
		return nil, fmt.Errorf("scan child record: %w", err)
	}
	child.Fields = make(schema.Fields)
	if err := json.Unmarshal(payload, &child.Fields); err != nil {
		return nil, fmt.Errorf("decode child fields: %w", err)
	}
	return &child, nil
}
