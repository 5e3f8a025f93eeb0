package handler

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/ab65ed/soaledu.ir-sub005/internal/service"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// ================================================
// Мок процесса покупки экзаменов
// ================================================

type MockExamWorkflow struct {
	mock.Mock
}

func (m *MockExamWorkflow) DrawQuestions(ctx context.Context, req examcache.Request) (*service.ExamDraw, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExamDraw), args.Error(1)
}

func (m *MockExamWorkflow) RecordPurchase(ctx context.Context, learnerID, examInstanceID string) (*service.ExamDraw, error) {
	args := m.Called(ctx, learnerID, examInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExamDraw), args.Error(1)
}

func (m *MockExamWorkflow) RepeatExam(ctx context.Context, learnerID, examInstanceID string) (*service.ExamDraw, error) {
	args := m.Called(ctx, learnerID, examInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExamDraw), args.Error(1)
}

func (m *MockExamWorkflow) LearnerStats(learnerID string) examcache.LearnerStats {
	args := m.Called(learnerID)
	return args.Get(0).(examcache.LearnerStats)
}

func (m *MockExamWorkflow) CacheStats() examcache.Stats {
	args := m.Called()
	return args.Get(0).(examcache.Stats)
}

func (m *MockExamWorkflow) InvalidateSubject(subjectID string) int {
	args := m.Called(subjectID)
	return args.Int(0)
}

func (m *MockExamWorkflow) ClearSharedCache() int {
	args := m.Called()
	return args.Int(0)
}

// ================================================
// Мок импорта вопросов
// ================================================

type MockQuestionImporter struct {
	mock.Mock
}

func (m *MockQuestionImporter) ImportXLSX(ctx context.Context, r io.Reader) (*service.ImportResult, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ImportResult), args.Error(1)
}

func (m *MockQuestionImporter) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}
