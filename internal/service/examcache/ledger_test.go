package examcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
	apperrors "github.com/ab65ed/soaledu.ir-sub005/internal/pkg/errors"
)

func TestRepetitionLedgerStore_RepeatUntilLimit(t *testing.T) {
	store := NewRepetitionLedgerStore(3, nil)
	original := makeQuestions("math", entity.DifficultyEasy, 5)
	require.NoError(t, store.CreateForPurchase("learner-1", "math", "exam-1", original))

	for expected := 2; expected <= 3; expected++ {
		questions, n, err := store.Repeat("learner-1", "exam-1")
		require.NoError(t, err)
		assert.Equal(t, expected, n)
		assert.Equal(t, original, questions, "Повтор возвращает исходный список в исходном порядке")
	}

	questions, n, err := store.Repeat("learner-1", "exam-1")
	assert.ErrorIs(t, err, ErrRepetitionLimitExceeded)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Nil(t, questions)
	assert.Equal(t, 3, n)
}

func TestRepetitionLedgerStore_FrozenCopy(t *testing.T) {
	store := NewRepetitionLedgerStore(5, nil)
	original := makeQuestions("math", entity.DifficultyEasy, 3)
	require.NoError(t, store.CreateForPurchase("learner-1", "math", "exam-1", original))

	original[0] = entity.NewQuestionRecord("mutated", "math", "easy", "", nil)
	questions, _, err := store.Repeat("learner-1", "exam-1")
	require.NoError(t, err)
	assert.Equal(t, "math-q1", questions[0].ID)

	questions[1] = entity.NewQuestionRecord("mutated", "math", "easy", "", nil)
	again, _, err := store.Repeat("learner-1", "exam-1")
	require.NoError(t, err)
	assert.Equal(t, "math-q2", again[1].ID)
}

func TestRepetitionLedgerStore_NotFound(t *testing.T) {
	store := NewRepetitionLedgerStore(2, nil)
	require.NoError(t, store.CreateForPurchase("learner-1", "math", "exam-1", makeQuestions("math", "", 2)))

	_, _, err := store.Repeat("learner-1", "exam-unknown")
	assert.ErrorIs(t, err, ErrRepetitionNotFound)

	// Чужой экзамен недоступен
	_, _, err = store.Repeat("learner-2", "exam-1")
	assert.ErrorIs(t, err, ErrRepetitionNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRepetitionLedgerStore_DuplicateCreate(t *testing.T) {
	store := NewRepetitionLedgerStore(3, nil)
	original := makeQuestions("math", "", 2)
	require.NoError(t, store.CreateForPurchase("learner-1", "math", "exam-1", original))
	_, _, err := store.Repeat("learner-1", "exam-1")
	require.NoError(t, err)

	err = store.CreateForPurchase("learner-1", "math", "exam-1", makeQuestions("physics", "", 2))
	assert.ErrorIs(t, err, ErrDuplicateLedger)

	questions, n, err := store.Repeat("learner-1", "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "Повторное создание не сбрасывает счётчик")
	assert.Equal(t, original, questions)
}

func TestRepetitionLedgerStore_DeleteStaleAndStats(t *testing.T) {
	clock := newFakeClock()
	store := NewRepetitionLedgerStore(3, clock.Now)
	require.NoError(t, store.CreateForPurchase("learner-1", "math", "exam-1", makeQuestions("math", "", 4)))
	clock.Advance(time.Hour)
	require.NoError(t, store.CreateForPurchase("learner-1", "physics", "exam-2", makeQuestions("physics", "", 2)))

	stats := store.ForLearner("learner-1")
	require.Len(t, stats, 2)
	assert.Equal(t, "exam-1", stats[0].ExamInstanceID)
	assert.Equal(t, 4, stats[0].QuestionCount)
	assert.Equal(t, 2, stats[0].Remaining)

	// Повтор продлевает жизнь журнала
	clock.Advance(10 * 24 * time.Hour)
	_, _, err := store.Repeat("learner-1", "exam-2")
	require.NoError(t, err)
	clock.Advance(25 * 24 * time.Hour)

	removed := store.DeleteStale(30 * 24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	_, _, err = store.Repeat("learner-1", "exam-1")
	assert.ErrorIs(t, err, ErrRepetitionNotFound)
}
