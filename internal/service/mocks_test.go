package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// ============================================================================
// Моки для сервисного слоя
// ============================================================================

// MockExamQuestionCache реализует ExamQuestionCache
type MockExamQuestionCache struct {
	mock.Mock
}

func (m *MockExamQuestionCache) GetExamQuestions(ctx context.Context, req examcache.Request) ([]entity.QuestionRecord, examcache.CacheInfo, error) {
	args := m.Called(ctx, req)
	var questions []entity.QuestionRecord
	if args.Get(0) != nil {
		questions = args.Get(0).([]entity.QuestionRecord)
	}
	return questions, args.Get(1).(examcache.CacheInfo), args.Error(2)
}

func (m *MockExamQuestionCache) RecordDrawnPurchase(ctx context.Context, learnerID, subjectID, examInstanceID string, sequenceNumber int, delivered []entity.QuestionRecord) error {
	args := m.Called(ctx, learnerID, subjectID, examInstanceID, sequenceNumber, delivered)
	return args.Error(0)
}

func (m *MockExamQuestionCache) Stats() examcache.Stats {
	args := m.Called()
	return args.Get(0).(examcache.Stats)
}

func (m *MockExamQuestionCache) LearnerStats(learnerID string) examcache.LearnerStats {
	args := m.Called(learnerID)
	return args.Get(0).(examcache.LearnerStats)
}

func (m *MockExamQuestionCache) InvalidateSubject(subjectID string) int {
	args := m.Called(subjectID)
	return args.Int(0)
}

func (m *MockExamQuestionCache) ClearSharedCache() int {
	args := m.Called()
	return args.Int(0)
}

// MockCacheRepository реализует repository.CacheRepository.
// GetJSON отдаёт в dest JSON-представление значения из Return.
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	if err := args.Error(1); err != nil {
		return err
	}
	data, err := json.Marshal(args.Get(0))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) FindQuestions(ctx context.Context, filter repository.QuestionFilter) ([]entity.QuestionRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.QuestionRecord), args.Error(1)
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, questions []entity.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

// memoryCacheRepo - CacheRepository в памяти (TTL не учитывается)
type memoryCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: make(map[string][]byte)}
}

func (r *memoryCacheRepo) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; ok {
		return false, nil
	}
	r.data[key] = []byte(fmt.Sprint(value))
	return true, nil
}

func (r *memoryCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[key]
	return ok, nil
}

func (r *memoryCacheRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}

func (r *memoryCacheRepo) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = data
	return nil
}

func (r *memoryCacheRepo) GetJSON(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	data, ok := r.data[key]
	r.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

// seededQuestionRepo - репозиторий вопросов одного предмета в памяти
type seededQuestionRepo struct {
	questions []entity.QuestionRecord
}

func newSeededQuestionRepo(subjectID string, n int) *seededQuestionRepo {
	repo := &seededQuestionRepo{}
	for i := 1; i <= n; i++ {
		repo.questions = append(repo.questions,
			entity.NewQuestionRecord(fmt.Sprintf("%s-q%02d", subjectID, i), subjectID, entity.DifficultyEasy, "", nil))
	}
	return repo
}

func (r *seededQuestionRepo) FindQuestions(_ context.Context, filter repository.QuestionFilter) ([]entity.QuestionRecord, error) {
	excluded := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	var out []entity.QuestionRecord
	for _, q := range r.questions {
		if q.SubjectID != filter.SubjectID {
			continue
		}
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		out = append(out, q)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *seededQuestionRepo) CreateBatch(context.Context, []entity.Question) error {
	return nil
}

func (r *seededQuestionRepo) CountBySubject(_ context.Context, subjectID string) (int64, error) {
	return int64(len(r.questions)), nil
}
