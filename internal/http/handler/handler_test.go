package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sgaapi/internal/model"
	"sgaapi/internal/service"
	serviceMocks "sgaapi/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newApp(svc service.SubmissionService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	db, _, _ := sqlmock.New()
	RegisterRoutes(app, db, svc)
	return app
}

func asStudent(req *http.Request) {
	req.Header.Set(HeaderStudentID, "alice")
	req.Header.Set(HeaderStudentName, "Alice Apple")
}

func asStaff(req *http.Request) {
	req.Header.Set(HeaderStudentID, "prof")
	req.Header.Set(HeaderStudentName, "Prof Plum")
	req.Header.Set(HeaderCourseStaff, "true")
}

func staffCaller() service.Caller {
	return service.Caller{StudentID: "prof", Name: "Prof Plum", IsStaff: true}
}

func studentCaller() service.Caller {
	return service.Caller{StudentID: "alice", Name: "Alice Apple"}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestUploadSubmission(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("Upload", mock.Anything, "hw3", studentCaller(), "report.pdf", mock.Anything, int64(17)).
			Return(&service.StudentState{Uploaded: &service.UploadedFile{Filename: "report.pdf"}}, nil).Once()

		body, ct := multipartBody(t, "assignment", "report.pdf", "17 bytes of stuff")
		req := httptest.NewRequest(http.MethodPost, "/assignments/hw3/submission", body)
		req.Header.Set("Content-Type", ct)
		asStudent(req)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var state service.StudentState
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		require.NotNil(t, state.Uploaded)
		assert.Equal(t, "report.pdf", state.Uploaded.Filename)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing file part", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		req := httptest.NewRequest(http.MethodPost, "/assignments/hw3/submission", strings.NewReader("not multipart"))
		asStudent(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing identity", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		body, ct := multipartBody(t, "assignment", "report.pdf", "x")
		req := httptest.NewRequest(http.MethodPost, "/assignments/hw3/submission", body)
		req.Header.Set("Content-Type", ct)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetState(t *testing.T) {
	mockSvc := new(serviceMocks.MockSubmissionService)
	app := newApp(mockSvc)

	mockSvc.On("State", mock.Anything, "hw3", studentCaller()).
		Return(&service.StudentState{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/", nil)
	asStudent(req)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	// No submission serializes as an explicit null.
	assert.JSONEq(t, `{"uploaded": null}`, string(raw))
}

func chunked(content string) *service.Download {
	rc := io.NopCloser(strings.NewReader(content))
	return &service.Download{
		Chunks: func(yield func([]byte, error) bool) {
			defer rc.Close()
			buf := make([]byte, 4)
			for {
				n, err := rc.Read(buf)
				if n > 0 && !yield(buf[:n], nil) {
					return
				}
				if err != nil {
					return
				}
			}
		},
		Filename: "report.pdf",
		MimeType: "application/pdf",
		Size:     int64(len(content)),
	}
}

func TestDownloadSubmission(t *testing.T) {
	t.Run("streams content with attachment headers", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("Download", mock.Anything, "hw3", studentCaller()).
			Return(chunked("17 bytes of stuff"), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/submission", nil)
		asStudent(req)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get("Content-Disposition"))
		assert.Equal(t, "17", resp.Header.Get("Content-Length"))

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "17 bytes of stuff", string(body))
	})

	t.Run("no submission yet", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("Download", mock.Anything, "hw3", studentCaller()).
			Return(nil, service.ErrNoSubmission).Once()

		req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/submission", nil)
		asStudent(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "NO_SUBMISSION", body.Error.Code)
	})
}

func TestStaffDownload(t *testing.T) {
	t.Run("forbidden for non-staff", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("StaffDownload", mock.Anything, "hw3", studentCaller(), "bob").
			Return(nil, service.ErrNotAuthorized).Once()

		req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/staff_download?module_id=bob", nil)
		asStudent(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("module_id required", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/staff_download", nil)
		asStaff(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertNotCalled(t, "StaffDownload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("streams target file", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("StaffDownload", mock.Anything, "hw3", staffCaller(), "alice").
			Return(chunked("student work"), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/staff_download?module_id=alice", nil)
		asStaff(req)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "student work", string(body))
	})
}

func TestGradingData(t *testing.T) {
	mockSvc := new(serviceMocks.MockSubmissionService)
	app := newApp(mockSvc)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	filename := "report.pdf"
	mockSvc.On("GradingData", mock.Anything, "hw3", staffCaller()).
		Return(&service.GradingData{Assignments: []service.GradingRow{
			{ModuleID: "alice", Username: "alice", Fullname: "Alice Apple", Filename: &filename, Timestamp: &now, Score: 85.5},
			{ModuleID: "bob", Username: "bob", Fullname: "Bob Banana"},
		}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/assignments/hw3/grading_data", nil)
	asStaff(req)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Assignments []map[string]any `json:"assignments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	require.Len(t, data.Assignments, 2)
	assert.Equal(t, "report.pdf", data.Assignments[0]["filename"])
	assert.Equal(t, 85.5, data.Assignments[0]["score"])
	assert.Nil(t, data.Assignments[1]["filename"])
}

func TestSetScore(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("SetScore", mock.Anything, "hw3", staffCaller(), "alice", 85.5).
			Return(nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/assignments/hw3/score?module_id=alice",
			strings.NewReader(`{"score": 85.5}`))
		req.Header.Set("Content-Type", "application/json")
		asStaff(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("out of bounds", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("SetScore", mock.Anything, "hw3", staffCaller(), "alice", 200.0).
			Return(service.ErrInvalidScore).Once()

		req := httptest.NewRequest(http.MethodPut, "/assignments/hw3/score?module_id=alice",
			strings.NewReader(`{"score": 200}`))
		req.Header.Set("Content-Type", "application/json")
		asStaff(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSettings(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("Settings", mock.Anything, "hw3").
			Return(&model.AssignmentSettings{ScopeID: "hw3", DisplayName: "Essay 3", Points: 50}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/assignments/hw3/settings", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var cfg model.AssignmentSettings
		json.NewDecoder(resp.Body).Decode(&cfg)
		assert.Equal(t, 50.0, cfg.Points)
	})

	t.Run("save requires staff", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockSubmissionService)
		app := newApp(mockSvc)

		mockSvc.On("SaveSettings", mock.Anything, "hw3", studentCaller(), service.SettingsInput{Points: 50}).
			Return(nil, service.ErrNotAuthorized).Once()

		req := httptest.NewRequest(http.MethodPut, "/assignments/hw3/settings",
			strings.NewReader(`{"points": 50}`))
		req.Header.Set("Content-Type", "application/json")
		asStudent(req)

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
