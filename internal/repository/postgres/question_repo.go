package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
)

// Размер пакета вставки при импорте
const createBatchSize = 200

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// questionRow - проекция строки questions, достаточная для кеша экзаменов
type questionRow struct {
	ID         string
	SubjectID  string
	Difficulty string
	Category   string
	Tags       entity.StringArray
}

// FindQuestions возвращает случайные вопросы, подходящие под фильтр.
// ORDER BY RANDOM() здесь допустим: выборка ограничена индексом (subject_id, difficulty)
// и LIMIT не превышает MaxPoolSize.
func (r *QuestionRepo) FindQuestions(ctx context.Context, filter repository.QuestionFilter) ([]entity.QuestionRecord, error) {
	query := r.buildFindQuery(r.db.WithContext(ctx), filter)

	var rows []questionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find questions for subject %s: %w", filter.SubjectID, err)
	}

	records := make([]entity.QuestionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, entity.NewQuestionRecord(row.ID, row.SubjectID, row.Difficulty, row.Category, row.Tags))
	}
	return records, nil
}

func (r *QuestionRepo) buildFindQuery(db *gorm.DB, filter repository.QuestionFilter) *gorm.DB {
	query := db.Model(&entity.Question{}).
		Select("id", "subject_id", "difficulty", "category", "tags").
		Where("subject_id = ?", filter.SubjectID)

	if filter.Difficulty != "" {
		query = query.Where("difficulty = ?", filter.Difficulty)
	}
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if len(filter.Tags) > 0 {
		// Эквивалент jsonb-оператора ?| (есть хотя бы один из тегов); сам оператор конфликтует с плейсхолдером GORM
		query = query.Where("jsonb_exists_any(tags, ?)", pq.Array(filter.Tags))
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	query = query.Order("RANDOM()")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

// CreateBatch создает пакет вопросов в одной транзакции
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Устанавливаем кодировку UTF-8 внутри транзакции
		if err := tx.Exec("SET CLIENT_ENCODING TO 'UTF8'").Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&questions, createBatchSize).Error
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("question already exists: %w", apperrors.ErrConflict)
	}
	return err
}

// CountBySubject возвращает количество вопросов предмета
func (r *QuestionRepo) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("subject_id = ?", subjectID).
		Count(&count).Error
	return count, err
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
