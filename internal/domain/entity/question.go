package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Уровни сложности вопросов
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question - документ вопроса в хранилище.
// Кеш экзаменов работает не с ним, а с QuestionRecord (см. ToRecord).
type Question struct {
	ID            string      `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID     string      `gorm:"size:64;not null;index:idx_questions_subject_difficulty,priority:1" json:"subject_id"`
	Difficulty    string      `gorm:"size:16;not null;index:idx_questions_subject_difficulty,priority:2" json:"difficulty"`
	Category      string      `gorm:"size:100;index" json:"category"`
	Tags          StringArray `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	Text          string      `gorm:"size:1000;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsValidDifficulty проверяет, что сложность входит в допустимый набор
func IsValidDifficulty(difficulty string) bool {
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// Validate проверяет документ перед сохранением
func (q *Question) Validate() error {
	if strings.TrimSpace(q.SubjectID) == "" {
		return errors.New("subject_id is required")
	}
	if !IsValidDifficulty(q.Difficulty) {
		return errors.New("difficulty must be one of easy, medium, hard")
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("text is required")
	}
	if len(q.Options) < 2 {
		return errors.New("at least two options are required")
	}
	if !q.IsValidOption(q.CorrectOption) {
		return errors.New("correct_option is out of range")
	}
	return nil
}

// ToRecord возвращает неизменяемую копию полей, нужных кешу экзаменов
func (q *Question) ToRecord() QuestionRecord {
	return NewQuestionRecord(q.ID, q.SubjectID, q.Difficulty, q.Category, q.Tags)
}
