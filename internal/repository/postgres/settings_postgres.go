package postgres

import (
	"context"
	"database/sql"
	"errors"

	"sgaapi/internal/model"
	"sgaapi/internal/repository"
)

// SettingsPostgres is a PostgreSQL implementation of
// repository.SettingsRepository.
type SettingsPostgres struct {
	db *sql.DB
}

// NewSettingsPostgres creates a new SettingsPostgres repository.
func NewSettingsPostgres(db *sql.DB) *SettingsPostgres {
	return &SettingsPostgres{db: db}
}

var _ repository.SettingsRepository = (*SettingsPostgres)(nil)

// Get fetches the assignment settings, falling back to defaults when the
// row was never written.
func (r *SettingsPostgres) Get(ctx context.Context, scopeID string) (*model.AssignmentSettings, error) {
	const q = `
		SELECT scope_id, display_name, points, weight
		FROM assignment_settings
		WHERE scope_id = $1
	`
	row := r.db.QueryRowContext(ctx, q, scopeID)
	var s model.AssignmentSettings
	err := row.Scan(&s.ScopeID, &s.DisplayName, &s.Points, &s.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.AssignmentSettings{
			ScopeID:     scopeID,
			DisplayName: "Staff Graded Assignment",
			Points:      model.DefaultPoints,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the settings row.
func (r *SettingsPostgres) Save(ctx context.Context, s *model.AssignmentSettings) error {
	const q = `
		INSERT INTO assignment_settings (scope_id, display_name, points, weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			points       = EXCLUDED.points,
			weight       = EXCLUDED.weight
	`
	_, err := r.db.ExecContext(ctx, q, s.ScopeID, s.DisplayName, s.Points, s.Weight)
	return err
}
