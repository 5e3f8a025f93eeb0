package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_Validate(t *testing.T) {
	valid := func() Question {
		return Question{
			ID:            "q-1",
			SubjectID:     "math-101",
			Difficulty:    DifficultyMedium,
			Text:          "۲ + ۲ = ؟",
			Options:       StringArray{"3", "4", "5"},
			CorrectOption: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr string
	}{
		{name: "валидный вопрос", mutate: func(q *Question) {}},
		{name: "без предмета", mutate: func(q *Question) { q.SubjectID = " " }, wantErr: "subject_id"},
		{name: "неизвестная сложность", mutate: func(q *Question) { q.Difficulty = "extreme" }, wantErr: "difficulty"},
		{name: "пустой текст", mutate: func(q *Question) { q.Text = "" }, wantErr: "text"},
		{name: "один вариант", mutate: func(q *Question) { q.Options = StringArray{"4"}; q.CorrectOption = 0 }, wantErr: "two options"},
		{name: "индекс ответа вне диапазона", mutate: func(q *Question) { q.CorrectOption = 3 }, wantErr: "correct_option"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(&q)
			err := q.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuestion_IsValidOption(t *testing.T) {
	question := &Question{Options: StringArray{"A", "B", "C", "D"}}

	assert.True(t, question.IsValidOption(0))
	assert.True(t, question.IsValidOption(3))
	assert.False(t, question.IsValidOption(-1), "Отрицательный индекс должен быть невалидным")
	assert.False(t, question.IsValidOption(4), "Индекс вне диапазона должен быть невалидным")
}

func TestStringArray_ScanAndValue(t *testing.T) {
	var arr StringArray

	require.NoError(t, arr.Scan([]byte(`["algebra","geometry"]`)))
	assert.Equal(t, StringArray{"algebra", "geometry"}, arr)

	require.NoError(t, arr.Scan(nil))
	assert.Empty(t, arr)

	require.NoError(t, arr.Scan(`["x"]`))
	assert.Equal(t, StringArray{"x"}, arr)

	assert.Error(t, arr.Scan(42), "Неподдерживаемый тип должен возвращать ошибку")

	v, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v, "Пустой массив сохраняется как [] а не null")
}

func TestQuestion_ToRecord_CopiesTags(t *testing.T) {
	q := Question{
		ID:         "q-7",
		SubjectID:  "physics",
		Difficulty: DifficultyHard,
		Category:   "mechanics",
		Tags:       StringArray{"konkur", "1402"},
	}

	rec := q.ToRecord()
	q.Tags[0] = "mutated"

	assert.Equal(t, "q-7", rec.ID)
	assert.Equal(t, "physics", rec.SubjectID)
	assert.Equal(t, []string{"konkur", "1402"}, rec.Tags(), "Запись не должна видеть изменения исходного документа")

	tags := rec.Tags()
	tags[1] = "mutated"
	assert.True(t, rec.HasTag("1402"), "Изменение возвращённого среза не должно менять запись")
}

func TestQuestionIDs_PreservesOrder(t *testing.T) {
	records := []QuestionRecord{
		NewQuestionRecord("c", "s", DifficultyEasy, "", nil),
		NewQuestionRecord("a", "s", DifficultyEasy, "", nil),
		NewQuestionRecord("b", "s", DifficultyEasy, "", nil),
	}
	assert.Equal(t, []string{"c", "a", "b"}, QuestionIDs(records))
}
