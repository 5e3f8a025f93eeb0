package examcache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
)

// ============================================================================
// Моки и тестовые репозитории для examcache
// ============================================================================

// MockQuestionRepo реализует repository.QuestionRepository через testify/mock
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) FindQuestions(ctx context.Context, filter repository.QuestionFilter) ([]entity.QuestionRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.QuestionRecord), args.Error(1)
}

func (m *MockQuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepo) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

// memoryQuestionRepo - репозиторий в памяти, честно применяющий фильтр
type memoryQuestionRepo struct {
	mu        sync.Mutex
	questions []entity.QuestionRecord
	calls     atomic.Int32
	delay     time.Duration
	lastLimit int
}

func newMemoryQuestionRepo(questions ...entity.QuestionRecord) *memoryQuestionRepo {
	return &memoryQuestionRepo{questions: questions}
}

func (r *memoryQuestionRepo) FindQuestions(ctx context.Context, filter repository.QuestionFilter) ([]entity.QuestionRecord, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	excluded := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = filter.Limit

	var out []entity.QuestionRecord
	for _, q := range r.questions {
		if q.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		if len(filter.Categories) > 0 && !containsString(filter.Categories, q.Category) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(q, filter.Tags) {
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

func (r *memoryQuestionRepo) CreateBatch(_ context.Context, questions []entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range questions {
		r.questions = append(r.questions, questions[i].ToRecord())
	}
	return nil
}

func (r *memoryQuestionRepo) CountBySubject(_ context.Context, subjectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, q := range r.questions {
		if q.SubjectID == subjectID {
			n++
		}
	}
	return n, nil
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func hasAnyTag(q entity.QuestionRecord, tags []string) bool {
	for _, t := range tags {
		if q.HasTag(t) {
			return true
		}
	}
	return false
}

// makeQuestions генерирует n вопросов предмета с id вида "<subject>-q<i>"
func makeQuestions(subjectID, difficulty string, n int) []entity.QuestionRecord {
	out := make([]entity.QuestionRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, entity.NewQuestionRecord(
			fmt.Sprintf("%s-q%d", subjectID, i), subjectID, difficulty, "general", []string{"core"},
		))
	}
	return out
}

// fakeClock - управляемые часы
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seededRand() func() *rand.Rand {
	var seq atomic.Uint64
	return func() *rand.Rand {
		return rand.New(rand.NewPCG(42, seq.Add(1)))
	}
}
