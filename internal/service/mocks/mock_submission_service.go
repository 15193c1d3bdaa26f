package mocks

import (
	"context"
	"io"

	"sgaapi/internal/model"
	"sgaapi/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) Upload(ctx context.Context, scopeID string, caller service.Caller, filename string, file io.ReadSeeker, size int64) (*service.StudentState, error) {
	args := m.Called(ctx, scopeID, caller, filename, file, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StudentState), args.Error(1)
}

func (m *MockSubmissionService) State(ctx context.Context, scopeID string, caller service.Caller) (*service.StudentState, error) {
	args := m.Called(ctx, scopeID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StudentState), args.Error(1)
}

func (m *MockSubmissionService) Download(ctx context.Context, scopeID string, caller service.Caller) (*service.Download, error) {
	args := m.Called(ctx, scopeID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockSubmissionService) StaffDownload(ctx context.Context, scopeID string, caller service.Caller, moduleID string) (*service.Download, error) {
	args := m.Called(ctx, scopeID, caller, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockSubmissionService) GradingData(ctx context.Context, scopeID string, caller service.Caller) (*service.GradingData, error) {
	args := m.Called(ctx, scopeID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GradingData), args.Error(1)
}

func (m *MockSubmissionService) SetScore(ctx context.Context, scopeID string, caller service.Caller, moduleID string, score float64) error {
	args := m.Called(ctx, scopeID, caller, moduleID, score)
	return args.Error(0)
}

func (m *MockSubmissionService) Settings(ctx context.Context, scopeID string) (*model.AssignmentSettings, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssignmentSettings), args.Error(1)
}

func (m *MockSubmissionService) SaveSettings(ctx context.Context, scopeID string, caller service.Caller, in service.SettingsInput) (*model.AssignmentSettings, error) {
	args := m.Called(ctx, scopeID, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssignmentSettings), args.Error(1)
}
