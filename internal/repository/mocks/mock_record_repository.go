package mocks

import (
	"context"

	"sgaapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Get(ctx context.Context, scopeID, studentID string) (*model.SubmissionRecord, error) {
	args := m.Called(ctx, scopeID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SubmissionRecord), args.Error(1)
}

func (m *MockRecordRepository) Touch(ctx context.Context, scopeID, studentID, studentName string) error {
	args := m.Called(ctx, scopeID, studentID, studentName)
	return args.Error(0)
}

func (m *MockRecordRepository) Upsert(ctx context.Context, rec *model.SubmissionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) SetScore(ctx context.Context, scopeID, studentID string, score float64) error {
	args := m.Called(ctx, scopeID, studentID, score)
	return args.Error(0)
}

func (m *MockRecordRepository) ListByScope(ctx context.Context, scopeID string) ([]model.SubmissionRecord, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SubmissionRecord), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, scopeID string) (*model.AssignmentSettings, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssignmentSettings), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, s *model.AssignmentSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
