package examcache

import (
	"sort"
	"sync"
	"time"
)

type historyKey struct {
	learnerID string
	subjectID string
}

// PurchaseHistoryStore хранит историю покупок по паре (учащийся, предмет)
type PurchaseHistoryStore struct {
	mu      sync.RWMutex
	records map[historyKey]*PurchaseHistory
	now     func() time.Time
}

// NewPurchaseHistoryStore создаёт хранилище истории
func NewPurchaseHistoryStore(now func() time.Time) *PurchaseHistoryStore {
	if now == nil {
		now = time.Now
	}
	return &PurchaseHistoryStore{
		records: make(map[historyKey]*PurchaseHistory),
		now:     now,
	}
}

// Get возвращает копию истории. Отсутствующая запись создаётся пустой
// (TotalPurchases = 0); ошибок метод не возвращает.
func (s *PurchaseHistoryStore) Get(learnerID, subjectID string) PurchaseHistory {
	key := historyKey{learnerID: learnerID, subjectID: subjectID}

	s.mu.RLock()
	rec, ok := s.records[key]
	if ok {
		snapshot := rec.clone()
		s.mu.RUnlock()
		return snapshot
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok = s.records[key]
	if !ok {
		rec = &PurchaseHistory{
			LearnerID:       learnerID,
			SubjectID:       subjectID,
			UsedQuestionIDs: make(map[string]struct{}),
			LastPurchaseAt:  s.now(),
		}
		s.records[key] = rec
	}
	return rec.clone()
}

// RecordPurchase добавляет экзамен в историю, увеличивает счётчик покупок
// и объединяет выданные вопросы с множеством использованных.
// Повторная запись того же экзамена ничего не меняет (recorded = false).
func (s *PurchaseHistoryStore) RecordPurchase(learnerID, subjectID, examInstanceID string, deliveredQuestionIDs []string) (history PurchaseHistory, recorded bool) {
	key := historyKey{learnerID: learnerID, subjectID: subjectID}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &PurchaseHistory{
			LearnerID:       learnerID,
			SubjectID:       subjectID,
			UsedQuestionIDs: make(map[string]struct{}),
		}
		s.records[key] = rec
	}

	if rec.HasPurchase(examInstanceID) {
		return rec.clone(), false
	}

	rec.PurchasedExamIDs = append(rec.PurchasedExamIDs, examInstanceID)
	rec.TotalPurchases++
	for _, id := range deliveredQuestionIDs {
		rec.UsedQuestionIDs[id] = struct{}{}
	}
	rec.LastPurchaseAt = s.now()
	return rec.clone(), true
}

// DeleteStale удаляет истории без покупок дольше maxIdle.
// Кандидаты собираются под RLock, удаляются под коротким Lock с перепроверкой.
func (s *PurchaseHistoryStore) DeleteStale(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.RLock()
	var stale []historyKey
	for k, rec := range s.records {
		if rec.LastPurchaseAt.Before(cutoff) {
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
		if rec, ok := s.records[k]; ok && rec.LastPurchaseAt.Before(cutoff) {
			delete(s.records, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// ForLearner возвращает истории учащегося по всем предметам
func (s *PurchaseHistoryStore) ForLearner(learnerID string) []PurchaseHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PurchaseHistory
	for k, rec := range s.records {
		if k.learnerID == learnerID {
			out = append(out, rec.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

// Len возвращает количество историй
func (s *PurchaseHistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (h *PurchaseHistory) clone() PurchaseHistory {
	c := *h
	c.PurchasedExamIDs = append([]string(nil), h.PurchasedExamIDs...)
	c.UsedQuestionIDs = make(map[string]struct{}, len(h.UsedQuestionIDs))
	for id := range h.UsedQuestionIDs {
		c.UsedQuestionIDs[id] = struct{}{}
	}
	return c
}

// EstimateBytes - грубая оценка памяти, занятой историями
func (s *PurchaseHistoryStore) EstimateBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for k, rec := range s.records {
		total += 128 + len(k.learnerID) + len(k.subjectID)
		for _, id := range rec.PurchasedExamIDs {
			total += 16 + len(id)
		}
		for id := range rec.UsedQuestionIDs {
			total += 48 + len(id) // строка + накладные расходы map
		}
	}
	return total
}

// UsedIDs возвращает использованные id в отсортированном виде
func (h PurchaseHistory) UsedIDs() []string {
	ids := make([]string, 0, len(h.UsedQuestionIDs))
	for id := range h.UsedQuestionIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
