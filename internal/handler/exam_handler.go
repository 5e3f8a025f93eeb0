package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ab65ed/soaledu.ir-sub005/internal/handler/dto"
	"github.com/ab65ed/soaledu.ir-sub005/internal/middleware"
	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// ExamWorkflow - операции покупки экзаменов, которые нужны HTTP-слою
type ExamWorkflow interface {
	DrawQuestions(ctx context.Context, req examcache.Request) (*service.ExamDraw, error)
	RecordPurchase(ctx context.Context, learnerID, examInstanceID string) (*service.ExamDraw, error)
	RepeatExam(ctx context.Context, learnerID, examInstanceID string) (*service.ExamDraw, error)
	LearnerStats(learnerID string) examcache.LearnerStats
	CacheStats() examcache.Stats
	InvalidateSubject(subjectID string) int
	ClearSharedCache() int
}

// ExamHandler обрабатывает запросы учащихся: выдача, покупка, повтор
type ExamHandler struct {
	exams ExamWorkflow
}

// NewExamHandler создает новый обработчик экзаменов
func NewExamHandler(exams ExamWorkflow) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// DrawQuestions выдаёт вопросы для новой покупки
func (h *ExamHandler) DrawQuestions(c *gin.Context) {
	var req dto.DrawQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	learnerID := c.GetString(middleware.ContextLearnerID)
	draw, err := h.exams.DrawQuestions(c.Request.Context(), req.ToCacheRequest(learnerID))
	if err != nil {
		handleExamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewExamQuestionsResponse(draw))
}

// RecordPurchase подтверждает покупку выданного экзамена
func (h *ExamHandler) RecordPurchase(c *gin.Context) {
	var req dto.RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
		return
	}

	learnerID := c.GetString(middleware.ContextLearnerID)
	draw, err := h.exams.RecordPurchase(c.Request.Context(), learnerID, req.ExamInstanceID)
	if err != nil {
		handleExamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewPurchaseResponse(draw))
}

// RepeatExam выдаёт вопросы купленного экзамена повторно
func (h *ExamHandler) RepeatExam(c *gin.Context) {
	examID := c.GetString("examID") // Из ExtractUUIDParam
	learnerID := c.GetString(middleware.ContextLearnerID)

	draw, err := h.exams.RepeatExam(c.Request.Context(), learnerID, examID)
	if err != nil {
		handleExamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewExamQuestionsResponse(draw))
}

// GetMyStats возвращает статистику покупок текущего учащегося
func (h *ExamHandler) GetMyStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.exams.LearnerStats(c.GetString(middleware.ContextLearnerID)))
}

// handleExamError переводит ошибки сервиса в HTTP-ответ
func handleExamError(c *gin.Context, err error) {
	log.Printf("[ExamHandler] %s %s: %v", c.Request.Method, c.FullPath(), err)

	switch {
	case errors.Is(err, context.Canceled):
		// Клиент ушёл, ответ никто не прочитает
		c.AbortWithStatus(499)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out", "error_type": "timeout"})
	case errors.Is(err, examcache.ErrInsufficientPool):
		c.JSON(http.StatusConflict, gin.H{"error": "Not enough questions for this exam", "error_type": "insufficient_pool"})
	case errors.Is(err, examcache.ErrEmptyPool):
		c.JSON(http.StatusNotFound, gin.H{"error": "No questions match the filter", "error_type": "empty_pool"})
	case errors.Is(err, service.ErrRepetitionStateLost):
		c.JSON(http.StatusNotFound, gin.H{"error": "Exam was purchased but its repetition state is no longer available", "error_type": "repetition_state_lost"})
	case errors.Is(err, examcache.ErrRepetitionLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "Repetition limit reached", "error_type": "repetition_limit_exceeded"})
	case errors.Is(err, examcache.ErrStaleDraw):
		c.JSON(http.StatusConflict, gin.H{"error": "Exam draw is outdated, request questions again", "error_type": "stale_draw"})
	case errors.Is(err, service.ErrPurchaseAlreadyRecorded):
		c.JSON(http.StatusConflict, gin.H{"error": "Purchase already recorded", "error_type": "already_recorded"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Requested resource not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable", "error_type": "unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
