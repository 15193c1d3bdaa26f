package handler

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"sgaapi/internal/service"
	"sgaapi/internal/storage"
)

// Identity headers forwarded by the host dispatcher. The service never
// decides who the caller is; it trusts these values the way the original
// runtime injected them.
const (
	HeaderStudentID   = "X-Student-Id"
	HeaderStudentName = "X-Student-Name"
	HeaderCourseStaff = "X-Course-Staff"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin: identity extraction, service call, response shaping.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.SubmissionService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	a := app.Group("/assignments/:scope")
	a.Get("/", GetState(svc))
	a.Post("/submission", UploadSubmission(svc))
	a.Get("/submission", DownloadSubmission(svc))
	a.Get("/staff_download", StaffDownload(svc))
	a.Get("/grading_data", GradingData(svc))
	a.Put("/score", SetScore(svc))
	a.Get("/settings", GetSettings(svc))
	a.Put("/settings", SaveSettings(svc))
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a trivial liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadSubmission accepts a single multipart file under the field
// "assignment" and returns the student's refreshed state projection.
func UploadSubmission(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}

		fh, err := c.FormFile("assignment")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_UPLOAD", "assignment file is required")
		}
		form, err := c.MultipartForm()
		if err == nil && len(form.File["assignment"]) > 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_UPLOAD", "exactly one file expected")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_UPLOAD", "cannot open uploaded file")
		}
		defer f.Close()

		state, err := svc.Upload(c.UserContext(), scopeFrom(c), caller, fh.Filename, f, fh.Size)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(state)
	}
}

// GetState returns the student-facing projection of the caller's record.
func GetState(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		state, err := svc.State(c.UserContext(), scopeFrom(c), caller)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(state)
	}
}

// DownloadSubmission streams the caller's own uploaded file back.
func DownloadSubmission(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		dl, err := svc.Download(c.UserContext(), scopeFrom(c), caller)
		if err != nil {
			return serviceError(c, err)
		}
		return sendDownload(c, dl)
	}
}

// StaffDownload streams the file of the student referenced by module_id.
func StaffDownload(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		moduleID := c.Query("module_id")
		if moduleID == "" {
			return writeError(c, fiber.StatusBadRequest, "MODULE_ID_REQUIRED", "module_id is required")
		}
		dl, err := svc.StaffDownload(c.UserContext(), scopeFrom(c), caller, moduleID)
		if err != nil {
			return serviceError(c, err)
		}
		return sendDownload(c, dl)
	}
}

// GradingData returns every student's submission state for the assignment.
func GradingData(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		data, err := svc.GradingData(c.UserContext(), scopeFrom(c), caller)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(data)
	}
}

type scoreRequest struct {
	Score float64 `json:"score"`
}

// SetScore assigns a grade to the student referenced by module_id.
func SetScore(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		moduleID := c.Query("module_id")
		if moduleID == "" {
			return writeError(c, fiber.StatusBadRequest, "MODULE_ID_REQUIRED", "module_id is required")
		}
		var req scoreRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid score payload")
		}
		if err := svc.SetScore(c.UserContext(), scopeFrom(c), caller, moduleID, req.Score); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetSettings returns the assignment's display parameters.
func GetSettings(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cfg, err := svc.Settings(c.UserContext(), scopeFrom(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(cfg)
	}
}

// SaveSettings updates display name, points and weight.
func SaveSettings(svc service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerFrom(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "student identity required")
		}
		var in service.SettingsInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid settings payload")
		}
		cfg, err := svc.SaveSettings(c.UserContext(), scopeFrom(c), caller, in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(cfg)
	}
}

// sendDownload writes the blob as an attachment, chunk by chunk, without
// buffering the whole file. An aborted connection ends the loop via the
// writer error.
func sendDownload(c *fiber.Ctx, dl *service.Download) error {
	c.Set(fiber.HeaderContentType, dl.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk, err := range dl.Chunks {
			if err != nil {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	// SetBodyStreamWriter defaults to chunked encoding; the blob size is
	// known from object metadata, so advertise it.
	if dl.Size > 0 {
		c.Context().Response.Header.SetContentLength(int(dl.Size))
	}
	return nil
}

// callerFrom rebuilds the caller identity from the dispatcher headers.
func callerFrom(c *fiber.Ctx) (service.Caller, bool) {
	id := c.Get(HeaderStudentID)
	if id == "" {
		return service.Caller{}, false
	}
	return service.Caller{
		StudentID: id,
		Name:      c.Get(HeaderStudentName),
		IsStaff:   c.Get(HeaderCourseStaff) == "true",
	}, true
}

// scopeFrom decodes the URL-encoded assignment scope path parameter. Scope
// ids commonly contain slashes, so the dispatcher percent-encodes them into
// a single segment.
func scopeFrom(c *fiber.Ctx) string {
	raw := c.Params("scope")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// serviceError translates the service error taxonomy to HTTP responses. No
// error is swallowed into a default result; unknown ones become opaque 500s.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidUpload):
		return writeError(c, fiber.StatusBadRequest, "INVALID_UPLOAD", "bad or missing upload")
	case errors.Is(err, storage.ErrInvalidScope):
		return writeError(c, fiber.StatusBadRequest, "INVALID_SCOPE", "malformed assignment scope")
	case errors.Is(err, service.ErrInvalidScore):
		return writeError(c, fiber.StatusBadRequest, "INVALID_SCORE", "score out of bounds")
	case errors.Is(err, service.ErrInvalidSettings):
		return writeError(c, fiber.StatusBadRequest, "INVALID_SETTINGS", "invalid assignment settings")
	case errors.Is(err, service.ErrNoSubmission):
		return writeError(c, fiber.StatusNotFound, "NO_SUBMISSION", "nothing uploaded yet")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "submission not found")
	case errors.Is(err, service.ErrNotAuthorized):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "staff capability required")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
