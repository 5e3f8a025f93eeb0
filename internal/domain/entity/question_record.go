package entity

// QuestionRecord - значение вопроса внутри кеша экзаменов.
// После создания не изменяется: теги копируются, наружу отдаётся копия.
type QuestionRecord struct {
	ID         string `json:"id"`
	SubjectID  string `json:"subjectId"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category,omitempty"`
	tags       []string
}

// NewQuestionRecord создаёт запись, копируя срез тегов
func NewQuestionRecord(id, subjectID, difficulty, category string, tags []string) QuestionRecord {
	var copied []string
	if len(tags) > 0 {
		copied = make([]string, len(tags))
		copy(copied, tags)
	}
	return QuestionRecord{
		ID:         id,
		SubjectID:  subjectID,
		Difficulty: difficulty,
		Category:   category,
		tags:       copied,
	}
}

// Tags возвращает копию тегов
func (r QuestionRecord) Tags() []string {
	if len(r.tags) == 0 {
		return nil
	}
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}

// HasTag проверяет наличие тега
func (r QuestionRecord) HasTag(tag string) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ApproxSize - грубая оценка занимаемой памяти в байтах (для статистики кеша)
func (r QuestionRecord) ApproxSize() int {
	size := 4*16 + 24 // заголовки строк + заголовок среза
	size += len(r.ID) + len(r.SubjectID) + len(r.Difficulty) + len(r.Category)
	for _, t := range r.tags {
		size += 16 + len(t)
	}
	return size
}

// QuestionIDs возвращает идентификаторы в исходном порядке
func QuestionIDs(records []QuestionRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
