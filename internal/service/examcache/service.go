package examcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
)

// Service - единая точка входа кеша пулов вопросов.
// Решает, каким путём выдать вопросы (общий пул, уникальный пул, повтор),
// и владеет фоновыми задачами очистки.
type Service struct {
	config  *Config
	builder *PoolBuilder
	shared  *SharedPoolCache
	history *PurchaseHistoryStore
	ledgers *RepetitionLedgerStore
	metrics *Metrics
	now     func() time.Time

	learnerLocks *stripedLock
	inflight     singleflight.Group

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New создаёт сервис и запускает фоновые задачи очистки.
// Вызывающий код обязан вызвать Shutdown.
func New(config *Config, deps *Dependencies) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exam cache config: %w", err)
	}
	if deps == nil || deps.QuestionRepo == nil {
		return nil, errors.New("QuestionRepository is required for exam cache")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		config:       config,
		builder:      NewPoolBuilder(deps.QuestionRepo, config, deps.Metrics, deps.NewRand),
		shared:       NewSharedPoolCache(config.SharedTTL, config.SharedCapacity, now, deps.Metrics),
		history:      NewPurchaseHistoryStore(now),
		ledgers:      NewRepetitionLedgerStore(config.MaxRepetitions, now),
		metrics:      deps.Metrics,
		now:          now,
		learnerLocks: newStripedLock(defaultLockStripes),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startJanitors(ctx)

	log.Printf("[ExamCache] Запущен: TTL=%v, capacity=%d, oversampling=%d, maxRepetitions=%d",
		config.SharedTTL, config.SharedCapacity, config.OversamplingFactor, config.MaxRepetitions)
	return s, nil
}

// Shutdown останавливает фоновые задачи и ждёт их завершения. Повторный вызов безопасен.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		log.Println("[ExamCache] Фоновые задачи остановлены")
	})
}

// GetExamQuestions выдаёт вопросы для покупки или повторного прохождения.
// Порядок маршрутизации:
//
//	повтор (IsRepetition + ExamInstanceID) -> журнал повторов
//	первая покупка предмета                -> общий пул
//	последующие покупки                    -> уникальный пул без ранее выданных вопросов
func (s *Service) GetExamQuestions(ctx context.Context, req Request) ([]entity.QuestionRecord, CacheInfo, error) {
	if strings.TrimSpace(req.LearnerID) == "" {
		return nil, CacheInfo{}, invalidRequest("learner id is required")
	}

	if req.IsRepetition {
		questions, info, err := s.repeat(req)
		s.metrics.incRequest(CacheTypeRepetition, err)
		return questions, info, err
	}

	if err := validateSelection(req); err != nil {
		return nil, CacheInfo{}, err
	}

	filter := Filter{
		SubjectID:  req.SubjectID,
		Difficulty: req.Difficulty,
		Categories: req.Categories,
		Tags:       req.Tags,
	}

	// Чтение истории, выбор пути и построение пула атомарны для пары (учащийся, предмет)
	unlock := s.learnerLocks.Lock(req.LearnerID, req.SubjectID)
	defer unlock()

	history := s.history.Get(req.LearnerID, req.SubjectID)
	info := CacheInfo{
		SequenceNumber: history.NextSequenceNumber(),
		Requested:      req.QuestionCount,
	}

	var (
		pool []entity.QuestionRecord
		err  error
	)
	if info.SequenceNumber == 1 {
		info.Type = CacheTypeShared
		pool, info.CacheHit, err = s.sharedPool(ctx, filter, req.QuestionCount, info.SequenceNumber)
		info.HitRate = s.shared.HitRate()
	} else {
		info.Type = CacheTypeUnique
		pool, err = s.uniquePool(ctx, filter, history, req.QuestionCount)
	}
	if err != nil {
		s.metrics.incRequest(info.Type, err)
		return nil, info, err
	}

	selected := s.builder.SelectRandom(pool, req.QuestionCount)
	info.Delivered = len(selected)
	info.InsufficientPool = len(selected) < req.QuestionCount

	if len(selected) == 0 {
		s.metrics.incRequest(info.Type, ErrEmptyPool)
		return nil, info, ErrEmptyPool
	}
	if info.InsufficientPool {
		log.Printf("[ExamCache] WARNING: learner=%s subject=%s получит %d из %d вопросов (%s, seq=%d)",
			req.LearnerID, req.SubjectID, info.Delivered, info.Requested, info.Type, info.SequenceNumber)
		if s.config.RejectInsufficientPool {
			err := fmt.Errorf("%w: %d of %d questions available", ErrInsufficientPool, info.Delivered, info.Requested)
			s.metrics.incRequest(info.Type, err)
			return nil, info, err
		}
	}

	s.metrics.incRequest(info.Type, nil)
	return selected, info, nil
}

func validateSelection(req Request) error {
	if strings.TrimSpace(req.SubjectID) == "" {
		return invalidRequest("subject id is required")
	}
	if req.QuestionCount <= 0 {
		return invalidRequest("question count must be positive, got %d", req.QuestionCount)
	}
	if req.Difficulty != "" && !entity.IsValidDifficulty(req.Difficulty) {
		return invalidRequest("unknown difficulty %q", req.Difficulty)
	}
	return nil
}

// sharedPool возвращает пул из общего кеша, заполняя его при промахе.
// Одновременные промахи по одному ключу обслуживаются одним запросом к репозиторию.
func (s *Service) sharedPool(ctx context.Context, filter Filter, count, sequenceNumber int) ([]entity.QuestionRecord, bool, error) {
	key := NewSharedKey(filter, count, sequenceNumber)
	if entry, ok := s.shared.Get(key); ok {
		return entry.Questions, true, nil
	}

	// Построение не должно прерываться отменой запроса-инициатора:
	// результат нужен и другим ожидающим покупателям.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key.String(), func() (interface{}, error) {
		pool, err := s.builder.Build(buildCtx, filter, nil, count)
		if err != nil {
			return nil, err
		}
		if len(pool.Questions) == 0 {
			return nil, ErrEmptyPool
		}
		entry := s.shared.Put(key, pool.Questions)
		log.Printf("[ExamCache] Создан общий пул %s: %d кандидатов", key, len(entry.Questions))
		return entry.Questions, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]entity.QuestionRecord), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// uniquePool строит пул в обход общего кеша, исключая все ранее выданные учащемуся вопросы
func (s *Service) uniquePool(ctx context.Context, filter Filter, history PurchaseHistory, count int) ([]entity.QuestionRecord, error) {
	pool, err := s.builder.Build(ctx, filter, history.UsedIDs(), count)
	if err != nil {
		return nil, err
	}
	return pool.Questions, nil
}

func (s *Service) repeat(req Request) ([]entity.QuestionRecord, CacheInfo, error) {
	info := CacheInfo{Type: CacheTypeRepetition}
	if strings.TrimSpace(req.ExamInstanceID) == "" {
		return nil, info, invalidRequest("exam instance id is required for repetition")
	}

	questions, n, err := s.ledgers.Repeat(req.LearnerID, req.ExamInstanceID)
	info.RepetitionNumber = n
	if err != nil {
		if errors.Is(err, ErrRepetitionLimitExceeded) {
			s.metrics.incRepetitionReject()
			log.Printf("[ExamCache] Лимит повторов исчерпан: learner=%s exam=%s (%d/%d)",
				req.LearnerID, req.ExamInstanceID, n, s.config.MaxRepetitions)
		}
		return nil, info, err
	}

	info.Requested = len(questions)
	info.Delivered = len(questions)
	return questions, info, nil
}

// RecordExamPurchase фиксирует успешную покупку: обновляет историю и создаёт журнал повторов.
// Вызывается процессом покупки ровно один раз, после того как вопросы были выданы.
// Вопросы, уже выданные учащемуся в прошлых покупках предмета, отклоняются с ErrStaleDraw.
func (s *Service) RecordExamPurchase(ctx context.Context, learnerID, subjectID, examInstanceID string, delivered []entity.QuestionRecord) error {
	return s.recordPurchase(ctx, learnerID, subjectID, examInstanceID, 0, delivered)
}

// RecordDrawnPurchase - RecordExamPurchase с проверкой номера покупки, под которым
// вопросы были выданы (CacheInfo.SequenceNumber). Если с момента выдачи учащийся
// купил другой экзамен предмета, выдача устарела и покупка отклоняется с ErrStaleDraw.
func (s *Service) RecordDrawnPurchase(ctx context.Context, learnerID, subjectID, examInstanceID string, sequenceNumber int, delivered []entity.QuestionRecord) error {
	if sequenceNumber <= 0 {
		return invalidRequest("sequence number must be positive, got %d", sequenceNumber)
	}
	return s.recordPurchase(ctx, learnerID, subjectID, examInstanceID, sequenceNumber, delivered)
}

func (s *Service) recordPurchase(ctx context.Context, learnerID, subjectID, examInstanceID string, sequenceNumber int, delivered []entity.QuestionRecord) error {
	switch {
	case strings.TrimSpace(learnerID) == "":
		return invalidRequest("learner id is required")
	case strings.TrimSpace(subjectID) == "":
		return invalidRequest("subject id is required")
	case strings.TrimSpace(examInstanceID) == "":
		return invalidRequest("exam instance id is required")
	case len(delivered) == 0:
		return invalidRequest("delivered questions are required")
	}

	unlock := s.learnerLocks.Lock(learnerID, subjectID)
	defer unlock()

	// Отменённая покупка не оставляет следов
	if err := ctx.Err(); err != nil {
		return err
	}

	current := s.history.Get(learnerID, subjectID)
	if !current.HasPurchase(examInstanceID) {
		if err := checkDrawFresh(current, sequenceNumber, delivered); err != nil {
			log.Printf("[ExamCache] WARNING: покупка %s отклонена (learner=%s subject=%s): %v", examInstanceID, learnerID, subjectID, err)
			return err
		}
	}

	history, recorded := s.history.RecordPurchase(learnerID, subjectID, examInstanceID, entity.QuestionIDs(delivered))
	if !recorded {
		log.Printf("[ExamCache] WARNING: покупка экзамена %s уже записана (learner=%s subject=%s)", examInstanceID, learnerID, subjectID)
	}

	if err := s.ledgers.CreateForPurchase(learnerID, subjectID, examInstanceID, delivered); err != nil && !errors.Is(err, ErrDuplicateLedger) {
		return err
	}

	s.metrics.setStoreSizes(s.history.Len(), s.ledgers.Len())
	log.Printf("[ExamCache] Покупка записана: learner=%s subject=%s exam=%s, всего покупок %d, использовано вопросов %d",
		learnerID, subjectID, examInstanceID, history.TotalPurchases, len(history.UsedQuestionIDs))
	return nil
}

// checkDrawFresh проверяет, что выдача не устарела относительно текущей истории.
// sequenceNumber = 0 означает, что номер покупки при выдаче неизвестен.
func checkDrawFresh(history PurchaseHistory, sequenceNumber int, delivered []entity.QuestionRecord) error {
	if sequenceNumber > 0 && sequenceNumber != history.NextSequenceNumber() {
		return fmt.Errorf("%w: drawn as purchase %d, next purchase is %d", ErrStaleDraw, sequenceNumber, history.NextSequenceNumber())
	}
	for _, q := range delivered {
		if _, used := history.UsedQuestionIDs[q.ID]; used {
			return fmt.Errorf("%w: question %s was delivered in an earlier purchase", ErrStaleDraw, q.ID)
		}
	}
	return nil
}

// InvalidateSubject удаляет общие пулы предмета (например, после импорта новых вопросов)
func (s *Service) InvalidateSubject(subjectID string) int {
	removed := s.shared.InvalidateSubject(subjectID)
	log.Printf("[ExamCache] Инвалидация предмета %s: удалено %d пулов", subjectID, removed)
	return removed
}

// ClearSharedCache очищает общий кеш. История покупок и журналы повторов не затрагиваются.
func (s *Service) ClearSharedCache() int {
	removed := s.shared.Clear()
	log.Printf("[ExamCache] Общий кеш очищен: удалено %d пулов", removed)
	return removed
}
