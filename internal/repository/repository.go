package repository

// Package repository contains data access layer abstractions for the
// per-student submission state and assignment settings. Implementations live
// in subpackages (e.g., postgres) inside this directory.

import (
	"context"

	"sgaapi/internal/model"
)

// RecordRepository is the per-student-state collaborator, keyed by
// (assignment scope, student). No business logic here — strictly persistence
// operations. Writes are last-write-wins; callers needing stronger ordering
// must add optimistic locking at this boundary.
type RecordRepository interface {
	// Get returns the student's record for the scope. A student who never
	// uploaded gets a zero-valued record (implicit creation), not an error.
	Get(ctx context.Context, scopeID, studentID string) (*model.SubmissionRecord, error)

	// Touch makes the implicit zero-valued record durable: it inserts a
	// hash-less row with zero score if none exists yet, and leaves an
	// existing row completely untouched.
	Touch(ctx context.Context, scopeID, studentID, studentName string) error

	// Upsert replaces the upload fields (name, hash, filename, mime type,
	// timestamp) of the record, creating the row if needed. Score is left
	// untouched.
	Upsert(ctx context.Context, rec *model.SubmissionRecord) error

	// SetScore updates the staff-assigned score of an existing record.
	// Returns sql.ErrNoRows if the record does not exist.
	SetScore(ctx context.Context, scopeID, studentID string, score float64) error

	// ListByScope returns every student's record under the scope, in the
	// store's natural order. Records without an upload are included.
	ListByScope(ctx context.Context, scopeID string) ([]model.SubmissionRecord, error)
}

// SettingsRepository stores the staff-editable assignment parameters.
type SettingsRepository interface {
	// Get returns the settings for the scope, or defaults (points=100) if
	// they were never edited.
	Get(ctx context.Context, scopeID string) (*model.AssignmentSettings, error)

	// Save upserts the settings row.
	Save(ctx context.Context, s *model.AssignmentSettings) error
}
