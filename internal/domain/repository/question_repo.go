package repository

import (
	"context"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
)

// QuestionFilter описывает выборку кандидатов для пула вопросов
type QuestionFilter struct {
	SubjectID  string
	Difficulty string
	Categories []string
	Tags       []string
	ExcludeIDs []string
	Limit      int
}

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	// FindQuestions возвращает до filter.Limit вопросов, подходящих под фильтр
	// и не входящих в ExcludeIDs. Порядок не гарантируется.
	FindQuestions(ctx context.Context, filter QuestionFilter) ([]entity.QuestionRecord, error)
	CreateBatch(ctx context.Context, questions []entity.Question) error
	CountBySubject(ctx context.Context, subjectID string) (int64, error)
}
