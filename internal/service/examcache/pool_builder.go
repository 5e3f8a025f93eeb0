package examcache

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
)

// Filter - параметры выборки вопросов без исключений и количества
type Filter struct {
	SubjectID  string
	Difficulty string
	Categories []string
	Tags       []string
}

// Pool - результат построения пула
type Pool struct {
	Questions    []entity.QuestionRecord
	Desired      int
	Insufficient bool // Кандидатов меньше, чем Desired
}

// PoolBuilder запрашивает у репозитория перевыбранный пул кандидатов
// и делает из него финальную случайную выборку.
type PoolBuilder struct {
	repo    repository.QuestionRepository
	config  *Config
	metrics *Metrics
	newRand func() *rand.Rand
}

// NewPoolBuilder создаёт построитель пулов
func NewPoolBuilder(repo repository.QuestionRepository, config *Config, metrics *Metrics, newRand func() *rand.Rand) *PoolBuilder {
	if newRand == nil {
		newRand = NewTimeSeededRand
	}
	return &PoolBuilder{
		repo:    repo,
		config:  config,
		metrics: metrics,
		newRand: newRand,
	}
}

var randSeq atomic.Uint64

// NewTimeSeededRand создаёт отдельный генератор на каждый вызов
func NewTimeSeededRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), randSeq.Add(1)))
}

// poolLimit = desired × factor, но не больше MaxPoolSize
func (b *PoolBuilder) poolLimit(desired int) int {
	limit := desired * b.config.OversamplingFactor
	if limit > b.config.MaxPoolSize {
		limit = b.config.MaxPoolSize
	}
	if limit < desired {
		limit = desired
	}
	return limit
}

// Build запрашивает пул кандидатов. Нехватка кандидатов не считается ошибкой:
// пул помечается Insufficient, решение принимает вызывающий код.
func (b *PoolBuilder) Build(ctx context.Context, filter Filter, excludeIDs []string, desired int) (*Pool, error) {
	limit := b.poolLimit(desired)

	repoCtx := ctx
	if b.config.RepositoryTimeout > 0 {
		var cancel context.CancelFunc
		repoCtx, cancel = context.WithTimeout(ctx, b.config.RepositoryTimeout)
		defer cancel()
	}

	started := time.Now()
	questions, err := b.repo.FindQuestions(repoCtx, repository.QuestionFilter{
		SubjectID:  filter.SubjectID,
		Difficulty: filter.Difficulty,
		Categories: filter.Categories,
		Tags:       filter.Tags,
		ExcludeIDs: excludeIDs,
		Limit:      limit,
	})
	b.metrics.observeRepository(time.Since(started), err)
	if err != nil {
		log.Printf("[PoolBuilder] Ошибка репозитория для subject=%s difficulty=%s: %v", filter.SubjectID, filter.Difficulty, err)
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}

	questions = dropExcluded(questions, excludeIDs)
	if len(questions) > limit {
		questions = questions[:limit]
	}

	pool := &Pool{
		Questions:    questions,
		Desired:      desired,
		Insufficient: len(questions) < desired,
	}
	if pool.Insufficient {
		b.metrics.incInsufficient()
		log.Printf("[PoolBuilder] WARNING: недостаточно вопросов для subject=%s difficulty=%s: найдено %d, нужно %d (исключено %d)",
			filter.SubjectID, filter.Difficulty, len(questions), desired, len(excludeIDs))
	}
	return pool, nil
}

// dropExcluded повторно отбрасывает исключённые и дублирующиеся id:
// адаптер не обязан соблюдать порядок, но уникальность гарантируем здесь.
func dropExcluded(questions []entity.QuestionRecord, excludeIDs []string) []entity.QuestionRecord {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	out := make([]entity.QuestionRecord, 0, len(questions))
	for _, q := range questions {
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		excluded[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

// SelectRandom возвращает min(len(pool), count) вопросов.
// Входной пул не изменяется: он может быть общим для нескольких покупателей.
func (b *PoolBuilder) SelectRandom(pool []entity.QuestionRecord, count int) []entity.QuestionRecord {
	return SelectRandom(b.newRand(), pool, count)
}

// SelectRandom - тасование Фишера-Йетса над копией пула и взятие первых count.
func SelectRandom(r *rand.Rand, pool []entity.QuestionRecord, count int) []entity.QuestionRecord {
	shuffled := make([]entity.QuestionRecord, len(pool))
	copy(shuffled, pool)
	if len(shuffled) <= count {
		return shuffled
	}
	if count <= 0 {
		return []entity.QuestionRecord{}
	}

	for i := len(shuffled) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:count]
}

// sortedCopy возвращает отсортированную копию без пустых значений и дублей
func sortedCopy(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
