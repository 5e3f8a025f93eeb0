package examcache

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
)

// Значения по умолчанию
const (
	DefaultSharedTTL            = 6 * time.Hour
	DefaultSharedCapacity       = 50
	DefaultOversamplingFactor   = 3
	DefaultMaxPoolSize          = 1000
	DefaultMaxRepetitions       = 2
	DefaultHistoryTTL           = 30 * 24 * time.Hour
	DefaultSharedSweepInterval  = 30 * time.Minute
	DefaultHistorySweepInterval = 2 * time.Hour
	DefaultRepositoryTimeout    = 5 * time.Second
)

// CacheType - путь, по которому были выданы вопросы
type CacheType string

const (
	CacheTypeShared     CacheType = "shared"
	CacheTypeUnique     CacheType = "unique"
	CacheTypeRepetition CacheType = "repetition"
)

// Config содержит настройки кеша пулов вопросов
type Config struct {
	SharedTTL            time.Duration // Время жизни общего пула
	SharedCapacity       int           // Максимум записей в общем кеше
	OversamplingFactor   int           // Во сколько раз пул больше запрошенного количества
	MaxPoolSize          int           // Жёсткий предел размера пула
	MaxRepetitions       int           // Сколько раз можно пройти купленный экзамен (включая первый)
	HistoryTTL           time.Duration // Неактивность, после которой история и журнал повторов удаляются
	SharedSweepInterval  time.Duration
	HistorySweepInterval time.Duration
	RepositoryTimeout    time.Duration // Таймаут одного запроса к репозиторию вопросов

	// RejectInsufficientPool: если true, неполный пул возвращает ErrInsufficientPool
	// вместо укороченного экзамена.
	RejectInsufficientPool bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		SharedTTL:            DefaultSharedTTL,
		SharedCapacity:       DefaultSharedCapacity,
		OversamplingFactor:   DefaultOversamplingFactor,
		MaxPoolSize:          DefaultMaxPoolSize,
		MaxRepetitions:       DefaultMaxRepetitions,
		HistoryTTL:           DefaultHistoryTTL,
		SharedSweepInterval:  DefaultSharedSweepInterval,
		HistorySweepInterval: DefaultHistorySweepInterval,
		RepositoryTimeout:    DefaultRepositoryTimeout,
	}
}

// Validate проверяет, что все лимиты положительные
func (c *Config) Validate() error {
	switch {
	case c.SharedTTL <= 0:
		return fmt.Errorf("shared TTL must be positive, got %v", c.SharedTTL)
	case c.SharedCapacity <= 0:
		return fmt.Errorf("shared capacity must be positive, got %d", c.SharedCapacity)
	case c.OversamplingFactor <= 0:
		return fmt.Errorf("oversampling factor must be positive, got %d", c.OversamplingFactor)
	case c.MaxPoolSize <= 0:
		return fmt.Errorf("max pool size must be positive, got %d", c.MaxPoolSize)
	case c.MaxRepetitions <= 0:
		return fmt.Errorf("max repetitions must be positive, got %d", c.MaxRepetitions)
	case c.HistoryTTL <= 0:
		return fmt.Errorf("history TTL must be positive, got %v", c.HistoryTTL)
	case c.SharedSweepInterval <= 0 || c.HistorySweepInterval <= 0:
		return fmt.Errorf("sweep intervals must be positive")
	}
	return nil
}

// Dependencies содержит зависимости сервиса
type Dependencies struct {
	QuestionRepo repository.QuestionRepository
	Metrics      *Metrics // nil - метрики не собираются

	// Now и NewRand подменяются в тестах
	Now     func() time.Time
	NewRand func() *rand.Rand
}

// Request - запрос вопросов для покупки или повторного прохождения экзамена
type Request struct {
	LearnerID      string
	SubjectID      string
	Difficulty     string
	Categories     []string
	Tags           []string
	QuestionCount  int
	IsRepetition   bool
	ExamInstanceID string
}

// CacheInfo описывает, как был обслужен запрос
type CacheInfo struct {
	Type             CacheType `json:"type"`
	CacheHit         bool      `json:"cacheHit"`
	HitRate          float64   `json:"hitRate,omitempty"`
	SequenceNumber   int       `json:"sequenceNumber,omitempty"`
	RepetitionNumber int       `json:"repetitionNumber,omitempty"`
	Requested        int       `json:"requested"`
	Delivered        int       `json:"delivered"`
	InsufficientPool bool      `json:"insufficientPool"`
}

// CacheEntry - запись общего кеша: перевыбранный пул, а не финальная выборка
type CacheEntry struct {
	SubjectID              string
	Difficulty             string
	CategorySignature      string
	TagSignature           string
	PurchaseSequenceNumber int
	Questions              []entity.QuestionRecord
	CreatedAt              time.Time
	ExpiresAt              time.Time
	UsageCount             int
	LastUsedAt             time.Time
}

// Valid: запись действительна, пока now < ExpiresAt
func (e *CacheEntry) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// PurchaseHistory - история покупок учащегося по одному предмету
type PurchaseHistory struct {
	LearnerID        string
	SubjectID        string
	PurchasedExamIDs []string
	TotalPurchases   int
	UsedQuestionIDs  map[string]struct{}
	LastPurchaseAt   time.Time
}

// NextSequenceNumber - порядковый номер следующей покупки
func (h PurchaseHistory) NextSequenceNumber() int {
	return h.TotalPurchases + 1
}

// HasPurchase сообщает, записана ли уже покупка экзамена
func (h PurchaseHistory) HasPurchase(examInstanceID string) bool {
	for _, id := range h.PurchasedExamIDs {
		if id == examInstanceID {
			return true
		}
	}
	return false
}

// RepetitionLedger - журнал повторов одного купленного экзамена
type RepetitionLedger struct {
	LearnerID         string
	ExamInstanceID    string
	SubjectID         string
	OriginalQuestions []entity.QuestionRecord
	RepetitionCount   int
	MaxRepetitions    int
	CreatedAt         time.Time
	LastRepetitionAt  time.Time
}

// Exhausted: лимит повторов исчерпан
func (l RepetitionLedger) Exhausted() bool {
	return l.RepetitionCount >= l.MaxRepetitions
}
