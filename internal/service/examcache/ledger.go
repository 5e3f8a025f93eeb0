package examcache

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
)

type ledgerKey struct {
	learnerID      string
	examInstanceID string
}

// RepetitionLedgerStore хранит журналы повторов по паре (учащийся, экзамен)
type RepetitionLedgerStore struct {
	mu             sync.RWMutex
	ledgers        map[ledgerKey]*RepetitionLedger
	maxRepetitions int
	now            func() time.Time
}

// NewRepetitionLedgerStore создаёт хранилище журналов
func NewRepetitionLedgerStore(maxRepetitions int, now func() time.Time) *RepetitionLedgerStore {
	if now == nil {
		now = time.Now
	}
	return &RepetitionLedgerStore{
		ledgers:        make(map[ledgerKey]*RepetitionLedger),
		maxRepetitions: maxRepetitions,
		now:            now,
	}
}

// CreateForPurchase создаёт журнал с RepetitionCount = 1 (первая попытка).
// Повторный вызов для того же экзамена ничего не меняет и возвращает ErrDuplicateLedger.
func (s *RepetitionLedgerStore) CreateForPurchase(learnerID, subjectID, examInstanceID string, originalQuestions []entity.QuestionRecord) error {
	key := ledgerKey{learnerID: learnerID, examInstanceID: examInstanceID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ledgers[key]; exists {
		log.Printf("[ExamCache] WARNING: журнал повторов для экзамена %s (learner=%s) уже существует, пропускаем", examInstanceID, learnerID)
		return ErrDuplicateLedger
	}

	frozen := make([]entity.QuestionRecord, len(originalQuestions))
	copy(frozen, originalQuestions)

	now := s.now()
	s.ledgers[key] = &RepetitionLedger{
		LearnerID:         learnerID,
		ExamInstanceID:    examInstanceID,
		SubjectID:         subjectID,
		OriginalQuestions: frozen,
		RepetitionCount:   1,
		MaxRepetitions:    s.maxRepetitions,
		CreatedAt:         now,
		LastRepetitionAt:  now,
	}
	return nil
}

// Repeat выдаёт исходный список вопросов в исходном порядке и увеличивает счётчик.
// Возвращает номер повтора (RepetitionCount после увеличения).
func (s *RepetitionLedgerStore) Repeat(learnerID, examInstanceID string) ([]entity.QuestionRecord, int, error) {
	key := ledgerKey{learnerID: learnerID, examInstanceID: examInstanceID}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[key]
	if !ok {
		return nil, 0, ErrRepetitionNotFound
	}
	if ledger.Exhausted() {
		return nil, ledger.RepetitionCount, ErrRepetitionLimitExceeded
	}

	ledger.RepetitionCount++
	ledger.LastRepetitionAt = s.now()

	questions := make([]entity.QuestionRecord, len(ledger.OriginalQuestions))
	copy(questions, ledger.OriginalQuestions)
	return questions, ledger.RepetitionCount, nil
}

// DeleteStale удаляет журналы без активности дольше maxIdle
func (s *RepetitionLedgerStore) DeleteStale(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.RLock()
	var stale []ledgerKey
	for k, l := range s.ledgers {
		if l.LastRepetitionAt.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, k := range stale {
		if l, ok := s.ledgers[k]; ok && l.LastRepetitionAt.Before(cutoff) {
			delete(s.ledgers, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// ForLearner возвращает состояние повторов всех экзаменов учащегося
func (s *RepetitionLedgerStore) ForLearner(learnerID string) []RepetitionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RepetitionStats
	for k, l := range s.ledgers {
		if k.learnerID != learnerID {
			continue
		}
		remaining := l.MaxRepetitions - l.RepetitionCount
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, RepetitionStats{
			ExamInstanceID:   l.ExamInstanceID,
			SubjectID:        l.SubjectID,
			QuestionCount:    len(l.OriginalQuestions),
			RepetitionCount:  l.RepetitionCount,
			MaxRepetitions:   l.MaxRepetitions,
			Remaining:        remaining,
			CreatedAt:        l.CreatedAt,
			LastRepetitionAt: l.LastRepetitionAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len возвращает количество журналов
func (s *RepetitionLedgerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers)
}
