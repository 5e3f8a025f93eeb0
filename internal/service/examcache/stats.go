package examcache

import (
	"time"
)

// Stats - снимок состояния кеша для админ-панели
type Stats struct {
	Shared               SharedCacheStats `json:"shared"`
	PurchaseHistories    int              `json:"purchaseHistories"`
	RepetitionLedgers    int              `json:"repetitionLedgers"`
	EstimatedMemoryBytes int              `json:"estimatedMemoryBytes"`
	Config               ConfigSnapshot   `json:"config"`
	GeneratedAt          time.Time        `json:"generatedAt"`
}

// ConfigSnapshot - действующие лимиты (для отображения)
type ConfigSnapshot struct {
	SharedTTLSeconds   int64 `json:"sharedTtlSeconds"`
	SharedCapacity     int   `json:"sharedCapacity"`
	OversamplingFactor int   `json:"oversamplingFactor"`
	MaxPoolSize        int   `json:"maxPoolSize"`
	MaxRepetitions     int   `json:"maxRepetitions"`
	HistoryTTLSeconds  int64 `json:"historyTtlSeconds"`
	RejectInsufficient bool  `json:"rejectInsufficientPool"`
}

// SubjectStats - покупки учащегося по одному предмету
type SubjectStats struct {
	SubjectID         string    `json:"subjectId"`
	TotalPurchases    int       `json:"totalPurchases"`
	PurchasedExamIDs  []string  `json:"purchasedExamIds"`
	UsedQuestionCount int       `json:"usedQuestionCount"`
	LastPurchaseAt    time.Time `json:"lastPurchaseAt"`
}

// RepetitionStats - состояние повторов одного экзамена
type RepetitionStats struct {
	ExamInstanceID   string    `json:"examInstanceId"`
	SubjectID        string    `json:"subjectId"`
	QuestionCount    int       `json:"questionCount"`
	RepetitionCount  int       `json:"repetitionCount"`
	MaxRepetitions   int       `json:"maxRepetitions"`
	Remaining        int       `json:"remaining"`
	CreatedAt        time.Time `json:"createdAt"`
	LastRepetitionAt time.Time `json:"lastRepetitionAt"`
}

// LearnerStats - статистика покупок и повторов учащегося
type LearnerStats struct {
	LearnerID      string            `json:"learnerId"`
	TotalPurchases int               `json:"totalPurchases"`
	Subjects       []SubjectStats    `json:"subjects"`
	Repetitions    []RepetitionStats `json:"repetitions"`
}

// Stats собирает снимок всех трёх хранилищ
func (s *Service) Stats() Stats {
	shared := s.shared.Stats()
	histories := s.history.Len()
	ledgers := s.ledgers.Len()
	s.metrics.setStoreSizes(histories, ledgers)

	return Stats{
		Shared:               shared,
		PurchaseHistories:    histories,
		RepetitionLedgers:    ledgers,
		EstimatedMemoryBytes: shared.EstimatedMemoryBytes + s.history.EstimateBytes(),
		Config: ConfigSnapshot{
			SharedTTLSeconds:   int64(s.config.SharedTTL / time.Second),
			SharedCapacity:     s.config.SharedCapacity,
			OversamplingFactor: s.config.OversamplingFactor,
			MaxPoolSize:        s.config.MaxPoolSize,
			MaxRepetitions:     s.config.MaxRepetitions,
			HistoryTTLSeconds:  int64(s.config.HistoryTTL / time.Second),
			RejectInsufficient: s.config.RejectInsufficientPool,
		},
		GeneratedAt: s.now(),
	}
}

// LearnerStats возвращает покупки и повторы учащегося по всем предметам.
// Для неизвестного учащегося возвращает пустую статистику.
func (s *Service) LearnerStats(learnerID string) LearnerStats {
	stats := LearnerStats{
		LearnerID:   learnerID,
		Subjects:    []SubjectStats{},
		Repetitions: []RepetitionStats{},
	}

	for _, h := range s.history.ForLearner(learnerID) {
		// Пустые записи появляются после запроса без покупки
		if h.TotalPurchases == 0 {
			continue
		}
		stats.TotalPurchases += h.TotalPurchases
		stats.Subjects = append(stats.Subjects, SubjectStats{
			SubjectID:         h.SubjectID,
			TotalPurchases:    h.TotalPurchases,
			PurchasedExamIDs:  h.PurchasedExamIDs,
			UsedQuestionCount: len(h.UsedQuestionIDs),
			LastPurchaseAt:    h.LastPurchaseAt,
		})
	}

	stats.Repetitions = append(stats.Repetitions, s.ledgers.ForLearner(learnerID)...)
	return stats
}
