package model

import "time"

// SubmissionRecord is the per-student state for one assignment instance.
// This is a pure domain model with no database-specific dependencies or tags.
// ContentHash, Filename, MimeType and UploadedAt transition together: either
// all are set (the student has uploaded) or none are (no submission yet).
type SubmissionRecord struct {
	ScopeID     string     `json:"scope_id"`
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	ContentHash string     `json:"content_hash"`
	Filename    string     `json:"filename"`
	MimeType    string     `json:"mime_type"`
	UploadedAt  *time.Time `json:"uploaded_at"`
	Score       float64    `json:"score"`
}

// Submitted reports whether the student has uploaded a file.
func (r *SubmissionRecord) Submitted() bool {
	return r.ContentHash != ""
}

// AssignmentSettings are the staff-editable parameters of one assignment
// instance. Points is the maximum score staff may assign.
type AssignmentSettings struct {
	ScopeID     string  `json:"scope_id"`
	DisplayName string  `json:"display_name"`
	Points      float64 `json:"points"`
	Weight      float64 `json:"weight"`
}

// DefaultPoints is the maximum score of an assignment whose settings were
// never edited.
const DefaultPoints = 100
