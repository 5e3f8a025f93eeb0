package dto

import (
	"time"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// DrawQuestionsRequest - запрос вопросов для новой покупки экзамена
type DrawQuestionsRequest struct {
	SubjectID     string   `json:"subjectId" binding:"required,max=64"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Categories    []string `json:"categories" binding:"omitempty,max=20,dive,max=100"`
	Tags          []string `json:"tags" binding:"omitempty,max=20,dive,max=100"`
	QuestionCount int      `json:"questionCount" binding:"required,min=1,max=200"`
}

// ToCacheRequest переводит запрос в запрос к кешу
func (r DrawQuestionsRequest) ToCacheRequest(learnerID string) examcache.Request {
	return examcache.Request{
		LearnerID:     learnerID,
		SubjectID:     r.SubjectID,
		Difficulty:    r.Difficulty,
		Categories:    r.Categories,
		Tags:          r.Tags,
		QuestionCount: r.QuestionCount,
	}
}

// RecordPurchaseRequest - подтверждение покупки ранее выданного экзамена
type RecordPurchaseRequest struct {
	ExamInstanceID string `json:"examInstanceId" binding:"required,uuid"`
}

// QuestionDTO - вопрос в ответе (без текста и ответа: их отдаёт сервис контента)
type QuestionDTO struct {
	ID         string   `json:"id"`
	SubjectID  string   `json:"subjectId"`
	Difficulty string   `json:"difficulty"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ExamQuestionsResponse - ответ на выдачу и повтор экзамена
type ExamQuestionsResponse struct {
	ExamInstanceID string              `json:"examInstanceId"`
	SubjectID      string              `json:"subjectId,omitempty"`
	Questions      []QuestionDTO       `json:"questions"`
	CacheInfo      examcache.CacheInfo `json:"cacheInfo"`
}

// PurchaseResponse - ответ на подтверждение покупки
type PurchaseResponse struct {
	ExamInstanceID string `json:"examInstanceId"`
	SubjectID      string `json:"subjectId"`
	QuestionCount  int    `json:"questionCount"`
}

// NewQuestionDTOs конвертирует записи кеша
func NewQuestionDTOs(records []entity.QuestionRecord) []QuestionDTO {
	out := make([]QuestionDTO, 0, len(records))
	for _, r := range records {
		out = append(out, QuestionDTO{
			ID:         r.ID,
			SubjectID:  r.SubjectID,
			Difficulty: r.Difficulty,
			Category:   r.Category,
			Tags:       r.Tags(),
		})
	}
	return out
}

// NewExamQuestionsResponse создает DTO выдачи
func NewExamQuestionsResponse(draw *service.ExamDraw) *ExamQuestionsResponse {
	return &ExamQuestionsResponse{
		ExamInstanceID: draw.ExamInstanceID,
		SubjectID:      draw.SubjectID,
		Questions:      NewQuestionDTOs(draw.Questions),
		CacheInfo:      draw.CacheInfo,
	}
}

// NewPurchaseResponse создает DTO подтверждённой покупки
func NewPurchaseResponse(draw *service.ExamDraw) *PurchaseResponse {
	return &PurchaseResponse{
		ExamInstanceID: draw.ExamInstanceID,
		SubjectID:      draw.SubjectID,
		QuestionCount:  len(draw.Questions),
	}
}

// InvalidateResponse - результат инвалидации общего кеша
type InvalidateResponse struct {
	SubjectID string `json:"subjectId,omitempty"`
	Removed   int    `json:"removed"`
}

// QuestionCountResponse - объём пула предмета
type QuestionCountResponse struct {
	SubjectID string `json:"subjectId"`
	Count     int64  `json:"count"`
}

// ImportResponse - результат импорта вопросов
type ImportResponse struct {
	Imported         int                      `json:"imported"`
	Subjects         []string                 `json:"subjects"`
	InvalidatedPools int                      `json:"invalidatedPools"`
	Errors           []service.ImportRowError `json:"errors,omitempty"`
	CompletedAt      time.Time                `json:"completedAt"`
}

// NewImportResponse создает DTO результата импорта
func NewImportResponse(result *service.ImportResult, completedAt time.Time) *ImportResponse {
	return &ImportResponse{
		Imported:         result.Imported,
		Subjects:         result.Subjects,
		InvalidatedPools: result.InvalidatedPools,
		Errors:           result.Errors,
		CompletedAt:      completedAt,
	}
}
