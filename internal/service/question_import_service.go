package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/repository"
)

// SubjectInvalidator сбрасывает закешированные пулы предмета
type SubjectInvalidator interface {
	InvalidateSubject(subjectID string) int
}

// ImportRowError - ошибка в конкретной строке файла (нумерация как в Excel)
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult - итог импорта
type ImportResult struct {
	Imported         int              `json:"imported"`
	Subjects         []string         `json:"subjects"`
	InvalidatedPools int              `json:"invalidatedPools"`
	Errors           []ImportRowError `json:"errors,omitempty"`
}

// QuestionImportService загружает вопросы из XLSX и поддерживает кеш пулов в актуальном состоянии
type QuestionImportService struct {
	questionRepo repository.QuestionRepository
	invalidator  SubjectInvalidator
	newID        func() string
}

// NewQuestionImportService создает сервис импорта вопросов
func NewQuestionImportService(questionRepo repository.QuestionRepository, invalidator SubjectInvalidator) *QuestionImportService {
	return &QuestionImportService{
		questionRepo: questionRepo,
		invalidator:  invalidator,
		newID:        uuid.NewString,
	}
}

// Обязательные колонки первой строки листа
var requiredImportColumns = []string{"subject_id", "difficulty", "text", "correct_option"}

// ImportXLSX читает первый лист книги. Строки проверяются целиком:
// при любой ошибке ничего не сохраняется, а в результате перечислены все ошибочные строки.
func (s *QuestionImportService) ImportXLSX(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrImportFile)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFile, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no data rows", ErrImportFile)
	}

	columns, optionColumns, err := parseImportHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Subjects: []string{}}
	questions := make([]entity.Question, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		q, err := s.parseImportRow(row, columns, optionColumns)
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		questions = append(questions, q)
	}

	if len(result.Errors) > 0 {
		log.Printf("[QuestionImport] Импорт отклонён: %d ошибочных строк", len(result.Errors))
		return result, fmt.Errorf("%w: %d invalid rows", ErrImportFile, len(result.Errors))
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrImportFile)
	}

	if err := s.questionRepo.CreateBatch(ctx, questions); err != nil {
		log.Printf("[QuestionImport] Ошибка сохранения %d вопросов: %v", len(questions), err)
		return nil, fmt.Errorf("failed to save imported questions: %w", err)
	}

	subjects := make(map[string]struct{})
	for _, q := range questions {
		subjects[q.SubjectID] = struct{}{}
	}
	for subjectID := range subjects {
		result.Subjects = append(result.Subjects, subjectID)
		// Новые вопросы должны попасть в следующие общие пулы
		result.InvalidatedPools += s.invalidator.InvalidateSubject(subjectID)
	}
	sort.Strings(result.Subjects)
	result.Imported = len(questions)

	log.Printf("[QuestionImport] Импортировано %d вопросов по предметам %v, сброшено пулов: %d",
		result.Imported, result.Subjects, result.InvalidatedPools)
	return result, nil
}

// CountBySubject возвращает количество вопросов предмета
func (s *QuestionImportService) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	return s.questionRepo.CountBySubject(ctx, subjectID)
}

func parseImportHeader(header []string) (map[string]int, []int, error) {
	columns := make(map[string]int, len(header))
	type optionColumn struct{ n, idx int }
	var options []optionColumn

	for idx, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if suffix, ok := strings.CutPrefix(name, "option_"); ok {
			n, err := strconv.Atoi(suffix)
			if err != nil || n < 1 {
				return nil, nil, fmt.Errorf("%w: bad option column %q", ErrImportFile, name)
			}
			options = append(options, optionColumn{n: n, idx: idx})
			continue
		}
		columns[name] = idx
	}

	for _, name := range requiredImportColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", ErrImportFile, name)
		}
	}
	if len(options) < 2 {
		return nil, nil, fmt.Errorf("%w: at least two option_N columns are required", ErrImportFile)
	}

	sort.Slice(options, func(i, j int) bool { return options[i].n < options[j].n })
	optionIdx := make([]int, len(options))
	for i, o := range options {
		optionIdx[i] = o.idx
	}
	return columns, optionIdx, nil
}

func (s *QuestionImportService) parseImportRow(row []string, columns map[string]int, optionColumns []int) (entity.Question, error) {
	cell := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}
	named := func(name string) string {
		idx, ok := columns[name]
		if !ok {
			return ""
		}
		return cell(idx)
	}

	q := entity.Question{
		ID:         s.newID(),
		SubjectID:  named("subject_id"),
		Difficulty: strings.ToLower(named("difficulty")),
		Category:   named("category"),
		Tags:       splitTags(named("tags")),
		Text:       named("text"),
		Options:    entity.StringArray{},
	}
	for _, idx := range optionColumns {
		if opt := cell(idx); opt != "" {
			q.Options = append(q.Options, opt)
		}
	}

	// В файле варианты нумеруются с 1
	correct, err := strconv.Atoi(named("correct_option"))
	if err != nil {
		return q, fmt.Errorf("correct_option must be a number")
	}
	q.CorrectOption = correct - 1

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

func splitTags(raw string) entity.StringArray {
	tags := entity.StringArray{}
	for _, t := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
