package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// ExamQuestionCache - операции кеша пулов вопросов, которыми пользуется процесс покупки
type ExamQuestionCache interface {
	GetExamQuestions(ctx context.Context, req examcache.Request) ([]entity.QuestionRecord, examcache.CacheInfo, error)
	RecordDrawnPurchase(ctx context.Context, learnerID, subjectID, examInstanceID string, sequenceNumber int, delivered []entity.QuestionRecord) error
	Stats() examcache.Stats
	LearnerStats(learnerID string) examcache.LearnerStats
	InvalidateSubject(subjectID string) int
	ClearSharedCache() int
}

// ExamServiceConfig - настройки процесса покупки
type ExamServiceConfig struct {
	DrawTTL           time.Duration // Сколько живёт выдача вопросов до подтверждения покупки
	PurchaseMarkerTTL time.Duration // Сколько хранится маркер покупки в Redis
}

// DefaultExamServiceConfig возвращает значения по умолчанию
func DefaultExamServiceConfig() ExamServiceConfig {
	return ExamServiceConfig{
		DrawTTL:           time.Hour,
		PurchaseMarkerTTL: examcache.DefaultHistoryTTL,
	}
}

// ExamDraw - вопросы, выданные под конкретный экземпляр экзамена
type ExamDraw struct {
	ExamInstanceID string
	LearnerID      string
	SubjectID      string
	Questions      []entity.QuestionRecord
	CacheInfo      examcache.CacheInfo
}

// storedDraw - форма выдачи в Redis (теги QuestionRecord не экспортируются)
type storedDraw struct {
	LearnerID      string           `json:"learner_id"`
	SubjectID      string           `json:"subject_id"`
	SequenceNumber int              `json:"sequence_number"`
	Questions      []storedQuestion `json:"questions"`
}

type storedQuestion struct {
	ID         string   `json:"id"`
	SubjectID  string   `json:"subject_id"`
	Difficulty string   `json:"difficulty"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ExamService связывает кеш пулов вопросов с процессом покупки:
// выдаёт вопросы, хранит выдачу до подтверждения и фиксирует покупку ровно один раз.
type ExamService struct {
	cache     ExamQuestionCache
	cacheRepo repository.CacheRepository
	config    ExamServiceConfig
	newID     func() string
}

// NewExamService создает сервис покупки экзаменов
func NewExamService(cache ExamQuestionCache, cacheRepo repository.CacheRepository, config ExamServiceConfig) *ExamService {
	if config.DrawTTL <= 0 {
		config.DrawTTL = DefaultExamServiceConfig().DrawTTL
	}
	if config.PurchaseMarkerTTL <= 0 {
		config.PurchaseMarkerTTL = DefaultExamServiceConfig().PurchaseMarkerTTL
	}
	return &ExamService{
		cache:     cache,
		cacheRepo: cacheRepo,
		config:    config,
		newID:     uuid.NewString,
	}
}

func drawKey(examInstanceID string) string {
	return fmt.Sprintf("exam:draw:%s", examInstanceID)
}

func purchaseKey(examInstanceID string) string {
	return fmt.Sprintf("exam:purchase:%s", examInstanceID)
}

// DrawQuestions выдаёт вопросы для новой покупки и сохраняет выдачу до подтверждения.
func (s *ExamService) DrawQuestions(ctx context.Context, req examcache.Request) (*ExamDraw, error) {
	req.IsRepetition = false
	if req.ExamInstanceID == "" {
		req.ExamInstanceID = s.newID()
	}

	questions, info, err := s.cache.GetExamQuestions(ctx, req)
	if err != nil {
		return nil, err
	}

	stored := storedDraw{
		LearnerID:      req.LearnerID,
		SubjectID:      req.SubjectID,
		SequenceNumber: info.SequenceNumber,
		Questions:      make([]storedQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		stored.Questions = append(stored.Questions, storedQuestion{
			ID:         q.ID,
			SubjectID:  q.SubjectID,
			Difficulty: q.Difficulty,
			Category:   q.Category,
			Tags:       q.Tags(),
		})
	}
	if err := s.cacheRepo.SetJSON(ctx, drawKey(req.ExamInstanceID), stored, s.config.DrawTTL); err != nil {
		log.Printf("[ExamService] Ошибка сохранения выдачи %s: %v", req.ExamInstanceID, err)
		return nil, fmt.Errorf("failed to store exam draw: %w", apperrors.ErrUnavailable)
	}

	log.Printf("[ExamService] Выдано %d вопросов: learner=%s subject=%s exam=%s (%s)",
		len(questions), req.LearnerID, req.SubjectID, req.ExamInstanceID, info.Type)
	return &ExamDraw{
		ExamInstanceID: req.ExamInstanceID,
		LearnerID:      req.LearnerID,
		SubjectID:      req.SubjectID,
		Questions:      questions,
		CacheInfo:      info,
	}, nil
}

// RecordPurchase подтверждает покупку ранее выданного экзамена.
// Маркер в Redis делает подтверждение идемпотентным между инстансами;
// недоступность Redis для маркера не блокирует покупку.
// Выдача, устаревшая из-за другой покупки того же предмета, отклоняется с examcache.ErrStaleDraw.
func (s *ExamService) RecordPurchase(ctx context.Context, learnerID, examInstanceID string) (*ExamDraw, error) {
	var stored storedDraw
	if err := s.cacheRepo.GetJSON(ctx, drawKey(examInstanceID), &stored); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if s.wasPurchased(ctx, examInstanceID) {
				return nil, ErrPurchaseAlreadyRecorded
			}
			return nil, ErrDrawNotFound
		}
		log.Printf("[ExamService] Ошибка чтения выдачи %s: %v", examInstanceID, err)
		return nil, fmt.Errorf("failed to load exam draw: %w", apperrors.ErrUnavailable)
	}
	if stored.LearnerID != learnerID {
		log.Printf("[ExamService] WARNING: learner=%s пытается подтвердить чужой экзамен %s", learnerID, examInstanceID)
		return nil, ErrDrawNotFound
	}

	marked, err := s.cacheRepo.SetNX(ctx, purchaseKey(examInstanceID), learnerID, s.config.PurchaseMarkerTTL)
	switch {
	case err != nil:
		log.Printf("[ExamService] WARNING: маркер покупки %s не установлен, продолжаем без него: %v", examInstanceID, err)
	case !marked:
		return nil, ErrPurchaseAlreadyRecorded
	}

	questions := make([]entity.QuestionRecord, 0, len(stored.Questions))
	for _, q := range stored.Questions {
		questions = append(questions, entity.NewQuestionRecord(q.ID, q.SubjectID, q.Difficulty, q.Category, q.Tags))
	}

	if err := s.cache.RecordDrawnPurchase(ctx, learnerID, stored.SubjectID, examInstanceID, stored.SequenceNumber, questions); err != nil {
		if marked {
			// Покупка не записана: снимаем маркер, чтобы повторная попытка прошла
			if delErr := s.cacheRepo.Delete(context.WithoutCancel(ctx), purchaseKey(examInstanceID)); delErr != nil {
				log.Printf("[ExamService] Ошибка снятия маркера покупки %s: %v", examInstanceID, delErr)
			}
		}
		return nil, err
	}

	if err := s.cacheRepo.Delete(ctx, drawKey(examInstanceID)); err != nil {
		log.Printf("[ExamService] Ошибка удаления выдачи %s: %v", examInstanceID, err)
	}

	return &ExamDraw{
		ExamInstanceID: examInstanceID,
		LearnerID:      learnerID,
		SubjectID:      stored.SubjectID,
		Questions:      questions,
	}, nil
}

// RepeatExam выдаёт исходные вопросы купленного экзамена
func (s *ExamService) RepeatExam(ctx context.Context, learnerID, examInstanceID string) (*ExamDraw, error) {
	questions, info, err := s.cache.GetExamQuestions(ctx, examcache.Request{
		LearnerID:      learnerID,
		IsRepetition:   true,
		ExamInstanceID: examInstanceID,
	})
	if err != nil {
		if errors.Is(err, examcache.ErrRepetitionNotFound) && s.wasPurchased(ctx, examInstanceID) {
			log.Printf("[ExamService] WARNING: экзамен %s куплен, но журнал повторов утерян (learner=%s)", examInstanceID, learnerID)
			return nil, ErrRepetitionStateLost
		}
		return nil, err
	}

	draw := &ExamDraw{
		ExamInstanceID: examInstanceID,
		LearnerID:      learnerID,
		Questions:      questions,
		CacheInfo:      info,
	}
	if len(questions) > 0 {
		draw.SubjectID = questions[0].SubjectID
	}
	return draw, nil
}

func (s *ExamService) wasPurchased(ctx context.Context, examInstanceID string) bool {
	exists, err := s.cacheRepo.Exists(ctx, purchaseKey(examInstanceID))
	if err != nil {
		log.Printf("[ExamService] Ошибка проверки маркера покупки %s: %v", examInstanceID, err)
		return false
	}
	return exists
}

// LearnerStats возвращает статистику покупок учащегося
func (s *ExamService) LearnerStats(learnerID string) examcache.LearnerStats {
	return s.cache.LearnerStats(learnerID)
}

// CacheStats возвращает снимок состояния кеша
func (s *ExamService) CacheStats() examcache.Stats {
	return s.cache.Stats()
}

// InvalidateSubject удаляет общие пулы предмета
func (s *ExamService) InvalidateSubject(subjectID string) int {
	return s.cache.InvalidateSubject(subjectID)
}

// ClearSharedCache очищает общий кеш пулов
func (s *ExamService) ClearSharedCache() int {
	return s.cache.ClearSharedCache()
}
