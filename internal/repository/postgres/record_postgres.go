package postgres

import (
	"context"
	"database/sql"
	"errors"

	"sgaapi/internal/model"
	"sgaapi/internal/repository"
)

// RecordPostgres is a PostgreSQL implementation of
// repository.RecordRepository. It uses database/sql with parameterized
// queries and contains no business logic.
type RecordPostgres struct {
	db *sql.DB
}

// NewRecordPostgres creates a new RecordPostgres repository.
func NewRecordPostgres(db *sql.DB) *RecordPostgres {
	return &RecordPostgres{db: db}
}

var _ repository.RecordRepository = (*RecordPostgres)(nil)

// Get fetches a student's record. A missing row is not an error: the record
// exists implicitly with zero values the first time the student shows up.
func (r *RecordPostgres) Get(ctx context.Context, scopeID, studentID string) (*model.SubmissionRecord, error) {
	const q = `
		SELECT scope_id, student_id, student_name, content_hash, filename, mime_type, uploaded_at, score
		FROM submission_records
		WHERE scope_id = $1 AND student_id = $2
	`
	row := r.db.QueryRowContext(ctx, q, scopeID, studentID)
	var rec model.SubmissionRecord
	err := row.Scan(
		&rec.ScopeID,
		&rec.StudentID,
		&rec.StudentName,
		&rec.ContentHash,
		&rec.Filename,
		&rec.MimeType,
		&rec.UploadedAt,
		&rec.Score,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.SubmissionRecord{ScopeID: scopeID, StudentID: studentID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Touch inserts the zero-valued row on first access. ON CONFLICT DO NOTHING
// keeps an existing row intact, including its upload fields and score.
func (r *RecordPostgres) Touch(ctx context.Context, scopeID, studentID, studentName string) error {
	const q = `
		INSERT INTO submission_records (scope_id, student_id, student_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope_id, student_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, q, scopeID, studentID, studentName)
	return err
}

// Upsert writes the upload fields of the record. Score is deliberately not
// part of the update set: uploads never clobber a staff-assigned grade.
func (r *RecordPostgres) Upsert(ctx context.Context, rec *model.SubmissionRecord) error {
	const q = `
		INSERT INTO submission_records (scope_id, student_id, student_name, content_hash, filename, mime_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope_id, student_id) DO UPDATE SET
			student_name = EXCLUDED.student_name,
			content_hash = EXCLUDED.content_hash,
			filename     = EXCLUDED.filename,
			mime_type    = EXCLUDED.mime_type,
			uploaded_at  = EXCLUDED.uploaded_at
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ScopeID,
		rec.StudentID,
		rec.StudentName,
		rec.ContentHash,
		rec.Filename,
		rec.MimeType,
		rec.UploadedAt,
	)
	return err
}

// SetScore updates only the score column.
func (r *RecordPostgres) SetScore(ctx context.Context, scopeID, studentID string, score float64) error {
	const q = `
		UPDATE submission_records
		SET score = $3
		WHERE scope_id = $1 AND student_id = $2
	`
	res, err := r.db.ExecContext(ctx, q, scopeID, studentID, score)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByScope returns all records under the assignment scope. No ORDER BY:
// callers needing a stable order sort explicitly.
func (r *RecordPostgres) ListByScope(ctx context.Context, scopeID string) ([]model.SubmissionRecord, error) {
	const q = `
		SELECT scope_id, student_id, student_name, content_hash, filename, mime_type, uploaded_at, score
		FROM submission_records
		WHERE scope_id = $1
	`
	rows, err := r.db.QueryContext(ctx, q, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.SubmissionRecord, 0)
	for rows.Next() {
		var rec model.SubmissionRecord
		if err := rows.Scan(
			&rec.ScopeID,
			&rec.StudentID,
			&rec.StudentName,
			&rec.ContentHash,
			&rec.Filename,
			&rec.MimeType,
			&rec.UploadedAt,
			&rec.Score,
		); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
