package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"sgaapi/internal/contenthash"
	"sgaapi/internal/model"
	"sgaapi/internal/repository"
	"sgaapi/internal/storage"
)

var (
	ErrInvalidUpload   = errors.New("invalid upload")
	ErrNoSubmission    = errors.New("no submission")
	ErrNotFound        = errors.New("submission not found")
	ErrNotAuthorized   = errors.New("staff capability required")
	ErrInvalidScore    = errors.New("score out of bounds")
	ErrInvalidSettings = errors.New("invalid assignment settings")
)

// Caller identifies the actor behind a request, as forwarded by the host
// dispatcher. IsStaff is the grading capability flag; the core never decides
// who is staff, it only honors the flag.
type Caller struct {
	StudentID string
	Name      string
	IsStaff   bool
}

// UploadedFile is the only upload detail exposed to students.
type UploadedFile struct {
	Filename string `json:"filename"`
}

// StudentState is the student-facing projection of a SubmissionRecord. It
// never carries the content hash, storage path, or score.
type StudentState struct {
	Uploaded *UploadedFile `json:"uploaded"`
}

// GradingRow is one entry in the staff grading view. Filename and Timestamp
// are nil for students who have not submitted yet.
type GradingRow struct {
	ModuleID  string     `json:"module_id"`
	Username  string     `json:"username"`
	Fullname  string     `json:"fullname"`
	Filename  *string    `json:"filename"`
	Timestamp *time.Time `json:"timestamp"`
	Score     float64    `json:"score"`
}

// GradingData is the staff grading view for one assignment. Row order is the
// state store's natural order; callers needing a stable order sort
// themselves.
type GradingData struct {
	Assignments []GradingRow `json:"assignments"`
}

// Download carries a submission's content stream plus the response metadata
// derived from its record. Chunks is single-use; consuming it releases the
// underlying reader.
type Download struct {
	Chunks   iter.Seq2[[]byte, error]
	Filename string
	MimeType string
	Size     int64
}

// SettingsInput is the staff-editable subset of assignment settings.
type SettingsInput struct {
	DisplayName string  `json:"display_name"`
	Points      float64 `json:"points"`
	Weight      float64 `json:"weight"`
}

// SubmissionService defines the use cases of the submission/grading system.
type SubmissionService interface {
	// Upload hashes the stream, stores the bytes deduplicated by content,
	// then updates the caller's record. The record write happens strictly
	// after the blob save so a crash never leaves a record pointing at a
	// missing blob.
	Upload(ctx context.Context, scopeID string, caller Caller, filename string, file io.ReadSeeker, size int64) (*StudentState, error)

	// State returns the caller's student-facing projection. First access
	// durably creates the zero-valued record, so the grading view lists
	// the student even before any upload.
	State(ctx context.Context, scopeID string, caller Caller) (*StudentState, error)

	// Download streams the caller's own submission back.
	Download(ctx context.Context, scopeID string, caller Caller) (*Download, error)

	// StaffDownload streams another student's submission; requires the
	// staff capability.
	StaffDownload(ctx context.Context, scopeID string, caller Caller, moduleID string) (*Download, error)

	// GradingData lists every student's record under the assignment,
	// including those who have not submitted; requires the staff capability.
	GradingData(ctx context.Context, scopeID string, caller Caller) (*GradingData, error)

	// SetScore assigns a grade to a student's submission; requires the
	// staff capability. The score must satisfy 0 <= score <= points.
	SetScore(ctx context.Context, scopeID string, caller Caller, moduleID string, score float64) error

	// Settings returns the assignment's display parameters.
	Settings(ctx context.Context, scopeID string) (*model.AssignmentSettings, error)

	// SaveSettings updates display name, points and weight; requires the
	// staff capability.
	SaveSettings(ctx context.Context, scopeID string, caller Caller, in SettingsInput) (*model.AssignmentSettings, error)
}

type submissionService struct {
	store    *storage.SubmissionStore
	records  repository.RecordRepository
	settings repository.SettingsRepository
	log      *zap.Logger
}

// NewSubmissionService constructs the service. The logger is a required
// constructor-time dependency; pass zap.NewNop() to silence it.
func NewSubmissionService(store *storage.SubmissionStore, records repository.RecordRepository, settings repository.SettingsRepository, log *zap.Logger) SubmissionService {
	return &submissionService{store: store, records: records, settings: settings, log: log}
}

func (s *submissionService) Upload(ctx context.Context, scopeID string, caller Caller, filename string, file io.ReadSeeker, size int64) (*StudentState, error) {
	if file == nil || filename == "" {
		return nil, fmt.Errorf("%w: missing file part", ErrInvalidUpload)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}

	hash, err := contenthash.Sum(file)
	if err != nil {
		return nil, err
	}

	path, err := s.store.PathFor(scopeID, hash, filename)
	if err != nil {
		return nil, err
	}

	mimeType := guessMimeType(filename)

	// The blob goes in first, from the same stream that was just hashed
	// (contenthash.Sum rewound it). Only once the bytes are durable does
	// the record flip to the new upload; a crash in between leaves at
	// worst an orphaned blob that nothing references.
	if err := s.store.Save(ctx, path, file, size, mimeType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &model.SubmissionRecord{
		ScopeID:     scopeID,
		StudentID:   caller.StudentID,
		StudentName: caller.Name,
		ContentHash: hash,
		Filename:    filename,
		MimeType:    mimeType,
		UploadedAt:  &now,
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("update submission record: %w", err)
	}

	s.log.Info("submission uploaded",
		zap.String("scope_id", scopeID),
		zap.String("student_id", caller.StudentID),
		zap.String("content_hash", hash),
		zap.Int64("size", size),
	)
	return projection(rec), nil
}

func (s *submissionService) State(ctx context.Context, scopeID string, caller Caller) (*StudentState, error) {
	// Materialize the implicit record so staff see the student in the
	// grading view before anything is uploaded. Touch never overwrites an
	// existing row.
	if err := s.records.Touch(ctx, scopeID, caller.StudentID, caller.Name); err != nil {
		return nil, fmt.Errorf("create submission record: %w", err)
	}
	rec, err := s.records.Get(ctx, scopeID, caller.StudentID)
	if err != nil {
		return nil, fmt.Errorf("read submission record: %w", err)
	}
	return projection(rec), nil
}

func (s *submissionService) Download(ctx context.Context, scopeID string, caller Caller) (*Download, error) {
	rec, err := s.records.Get(ctx, scopeID, caller.StudentID)
	if err != nil {
		return nil, fmt.Errorf("read submission record: %w", err)
	}
	if !rec.Submitted() {
		return nil, ErrNoSubmission
	}
	return s.openDownload(ctx, rec)
}

func (s *submissionService) StaffDownload(ctx context.Context, scopeID string, caller Caller, moduleID string) (*Download, error) {
	if !caller.IsStaff {
		return nil, ErrNotAuthorized
	}
	rec, err := s.records.Get(ctx, scopeID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("read submission record: %w", err)
	}
	if !rec.Submitted() {
		return nil, fmt.Errorf("%w: student %s has no submission", ErrNotFound, moduleID)
	}
	return s.openDownload(ctx, rec)
}

// openDownload resolves a submitted record to its blob stream. A record
// whose blob is gone means storage-layer data loss; that surfaces as
// ErrNotFound rather than a crash.
func (s *submissionService) openDownload(ctx context.Context, rec *model.SubmissionRecord) (*Download, error) {
	path, err := s.store.PathFor(rec.ScopeID, rec.ContentHash, rec.Filename)
	if err != nil {
		return nil, err
	}
	rc, info, err := s.store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Error("record references missing blob",
				zap.String("scope_id", rec.ScopeID),
				zap.String("student_id", rec.StudentID),
				zap.String("path", path),
			)
			return nil, fmt.Errorf("%w: stored file missing", ErrNotFound)
		}
		return nil, err
	}
	return &Download{
		Chunks:   s.store.StreamOut(rc, 0),
		Filename: rec.Filename,
		MimeType: rec.MimeType,
		Size:     info.Size,
	}, nil
}

func (s *submissionService) GradingData(ctx context.Context, scopeID string, caller Caller) (*GradingData, error) {
	if !caller.IsStaff {
		return nil, ErrNotAuthorized
	}
	recs, err := s.records.ListByScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list submission records: %w", err)
	}

	rows := make([]GradingRow, 0, len(recs))
	for _, rec := range recs {
		row := GradingRow{
			ModuleID: rec.StudentID,
			Username: rec.StudentID,
			Fullname: rec.StudentName,
			Score:    rec.Score,
		}
		if rec.Submitted() {
			filename := rec.Filename
			row.Filename = &filename
			row.Timestamp = rec.UploadedAt
		}
		rows = append(rows, row)
	}
	return &GradingData{Assignments: rows}, nil
}

func (s *submissionService) SetScore(ctx context.Context, scopeID string, caller Caller, moduleID string, score float64) error {
	if !caller.IsStaff {
		return ErrNotAuthorized
	}
	cfg, err := s.settings.Get(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("read assignment settings: %w", err)
	}
	if score < 0 || score > cfg.Points {
		return fmt.Errorf("%w: %g not in [0, %g]", ErrInvalidScore, score, cfg.Points)
	}
	if err := s.records.SetScore(ctx, scopeID, moduleID, score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: student %s", ErrNotFound, moduleID)
		}
		return fmt.Errorf("set score: %w", err)
	}
	s.log.Info("score assigned",
		zap.String("scope_id", scopeID),
		zap.String("student_id", moduleID),
		zap.Float64("score", score),
	)
	return nil
}

func (s *submissionService) Settings(ctx context.Context, scopeID string) (*model.AssignmentSettings, error) {
	return s.settings.Get(ctx, scopeID)
}

func (s *submissionService) SaveSettings(ctx context.Context, scopeID string, caller Caller, in SettingsInput) (*model.AssignmentSettings, error) {
	if !caller.IsStaff {
		return nil, ErrNotAuthorized
	}
	if in.Points < 0 || in.Weight < 0 {
		return nil, fmt.Errorf("%w: points and weight must be >= 0", ErrInvalidSettings)
	}
	cfg := &model.AssignmentSettings{
		ScopeID:     scopeID,
		DisplayName: in.DisplayName,
		Points:      in.Points,
		Weight:      in.Weight,
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Staff Graded Assignment"
	}
	if err := s.settings.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save assignment settings: %w", err)
	}
	return cfg, nil
}

// projection builds the student-facing view: the filename when an upload
// exists, null otherwise. Hash, path and score stay internal.
func projection(rec *model.SubmissionRecord) *StudentState {
	if !rec.Submitted() {
		return &StudentState{}
	}
	return &StudentState{Uploaded: &UploadedFile{Filename: rec.Filename}}
}

// guessMimeType resolves the content type from the filename extension only.
// Unknown extensions fall back to a generic binary type, never an error.
func guessMimeType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
