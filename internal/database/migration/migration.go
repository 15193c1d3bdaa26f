package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_submission_records",
		SQL: `CREATE TABLE IF NOT EXISTS submission_records (
  scope_id     TEXT             NOT NULL,
  student_id   TEXT             NOT NULL,
  student_name TEXT             NOT NULL DEFAULT '',
  content_hash TEXT             NOT NULL DEFAULT '',
  filename     TEXT             NOT NULL DEFAULT '',
  mime_type    TEXT             NOT NULL DEFAULT '',
  uploaded_at  TIMESTAMPTZ,
  score        DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (score >= 0),
  PRIMARY KEY (scope_id, student_id)
);`,
	},
	{
		Name: "create_index_submission_records_content_hash",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_submission_records_content_hash ON submission_records (content_hash);`,
	},
	{
		Name: "create_table_assignment_settings",
		SQL: `CREATE TABLE IF NOT EXISTS assignment_settings (
  scope_id     TEXT             PRIMARY KEY,
  display_name TEXT             NOT NULL DEFAULT 'Staff Graded Assignment',
  points       DOUBLE PRECISION NOT NULL DEFAULT 100 CHECK (points >= 0),
  weight       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (weight >= 0)
);`,
	},
}

// EnsureMigrated checks if the 'submission_records' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.submission_records') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
