package examcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
)

func TestNewSharedKey_OrderIndependent(t *testing.T) {
	a := NewSharedKey(Filter{
		SubjectID:  "math",
		Difficulty: "easy",
		Categories: []string{"algebra", "geometry"},
		Tags:       []string{"b", "a"},
	}, 10, 1)
	b := NewSharedKey(Filter{
		SubjectID:  "math",
		Difficulty: "easy",
		Categories: []string{"geometry", "algebra"},
		Tags:       []string{"a", "b", "a"},
	}, 10, 1)

	assert.Equal(t, a, b, "Порядок категорий и тегов не должен влиять на ключ")
	assert.Equal(t, "pool:math:easy:c=algebra,geometry:t=a,b:n=10:s=1", a.String())

	c := NewSharedKey(Filter{SubjectID: "math", Difficulty: "easy"}, 5, 1)
	assert.NotEqual(t, a, c)
}

func TestSharedPoolCache_GetPut(t *testing.T) {
	clock := newFakeClock()
	cache := NewSharedPoolCache(time.Hour, 10, clock.Now, nil)
	key := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)

	_, ok := cache.Get(key)
	assert.False(t, ok, "Пустой кеш должен давать промах")

	questions := makeQuestions("math", entity.DifficultyEasy, 15)
	entry := cache.Put(key, questions)
	assert.Equal(t, 1, entry.UsageCount)
	assert.Equal(t, clock.Now().Add(time.Hour), entry.ExpiresAt)

	// Изменение исходного среза не должно влиять на кеш
	questions[0] = entity.NewQuestionRecord("mutated", "math", "easy", "", nil)

	clock.Advance(time.Minute)
	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, 2, got.UsageCount)
	assert.Equal(t, clock.Now(), got.LastUsedAt)
	assert.Equal(t, "math-q1", got.Questions[0].ID)
	assert.InDelta(t, 0.5, cache.HitRate(), 0.0001)
}

func TestSharedPoolCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewSharedPoolCache(time.Hour, 10, clock.Now, nil)
	key := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)
	cache.Put(key, makeQuestions("math", entity.DifficultyEasy, 5))

	clock.Advance(59 * time.Minute)
	_, ok := cache.Get(key)
	assert.True(t, ok, "До истечения TTL запись действительна")

	clock.Advance(time.Minute)
	_, ok = cache.Get(key)
	assert.False(t, ok, "В момент expiresAt запись уже недействительна")
	assert.Equal(t, 0, cache.Len(), "Истёкшая запись удаляется при чтении")
	assert.Equal(t, int64(1), cache.Stats().Expirations)
}

func TestSharedPoolCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	cache := NewSharedPoolCache(time.Hour, 2, clock.Now, nil)
	k1 := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)
	k2 := NewSharedKey(Filter{SubjectID: "physics"}, 5, 1)
	k3 := NewSharedKey(Filter{SubjectID: "chemistry"}, 5, 1)

	cache.Put(k1, makeQuestions("math", "", 5))
	clock.Advance(time.Second)
	cache.Put(k2, makeQuestions("physics", "", 5))
	clock.Advance(time.Second)
	// k1 используется позже k2, значит вытесняется k2
	_, ok := cache.Get(k1)
	require.True(t, ok)
	clock.Advance(time.Second)

	cache.Put(k3, makeQuestions("chemistry", "", 5))

	assert.Equal(t, 2, cache.Len())
	_, ok = cache.Get(k2)
	assert.False(t, ok, "Должна быть вытеснена запись с самым старым LastUsedAt")
	_, ok = cache.Get(k1)
	assert.True(t, ok)
	_, ok = cache.Get(k3)
	assert.True(t, ok)
	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

// Истёкшая запись, которую ещё не убрал janitor, не занимает место живой
func TestSharedPoolCache_PutDropsExpiredBeforeEvicting(t *testing.T) {
	clock := newFakeClock()
	cache := NewSharedPoolCache(6*time.Hour, 2, clock.Now, nil)
	expired := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)
	live := NewSharedKey(Filter{SubjectID: "physics"}, 5, 1)
	fresh := NewSharedKey(Filter{SubjectID: "chemistry"}, 5, 1)

	cache.Put(expired, makeQuestions("math", "", 5))
	clock.Advance(2 * time.Hour)
	cache.Put(live, makeQuestions("physics", "", 5))
	clock.Advance(3*time.Hour + 59*time.Minute)
	_, ok := cache.Get(expired)
	require.True(t, ok, "LastUsedAt истекающей записи новее, чем у живой")

	clock.Advance(2 * time.Hour)
	cache.Put(fresh, makeQuestions("chemistry", "", 5))

	assert.Equal(t, 2, cache.Len())
	_, ok = cache.Get(live)
	assert.True(t, ok, "Живая запись не вытесняется, пока есть истёкшая")
	_, ok = cache.Get(fresh)
	assert.True(t, ok)
	stats := cache.Stats()
	assert.Equal(t, int64(0), stats.Evictions)
	assert.Equal(t, int64(1), stats.Expirations)
}

func TestSharedPoolCache_PutExistingKeyDoesNotEvict(t *testing.T) {
	cache := NewSharedPoolCache(time.Hour, 1, nil, nil)
	key := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)

	cache.Put(key, makeQuestions("math", "", 5))
	cache.Put(key, makeQuestions("math", "", 6))

	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, int64(0), cache.Stats().Evictions)
}

func TestSharedPoolCache_DeleteExpired(t *testing.T) {
	clock := newFakeClock()
	cache := NewSharedPoolCache(time.Hour, 10, clock.Now, nil)
	cache.Put(NewSharedKey(Filter{SubjectID: "math"}, 5, 1), makeQuestions("math", "", 5))
	clock.Advance(30 * time.Minute)
	cache.Put(NewSharedKey(Filter{SubjectID: "physics"}, 5, 1), makeQuestions("physics", "", 5))
	clock.Advance(45 * time.Minute)

	removed := cache.DeleteExpired()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Len())
}

func TestSharedPoolCache_InvalidateAndClear(t *testing.T) {
	cache := NewSharedPoolCache(time.Hour, 10, nil, nil)
	cache.Put(NewSharedKey(Filter{SubjectID: "math"}, 5, 1), makeQuestions("math", "", 5))
	cache.Put(NewSharedKey(Filter{SubjectID: "math", Difficulty: "hard"}, 5, 1), makeQuestions("math", "", 5))
	cache.Put(NewSharedKey(Filter{SubjectID: "physics"}, 5, 1), makeQuestions("physics", "", 5))

	assert.Equal(t, 2, cache.InvalidateSubject("math"))
	assert.Equal(t, 0, cache.InvalidateSubject("math"))
	assert.Equal(t, 1, cache.Len())

	assert.Equal(t, 1, cache.Clear())
	assert.Equal(t, 0, cache.Len())
}

func TestSharedPoolCache_Stats(t *testing.T) {
	cache := NewSharedPoolCache(time.Hour, 10, nil, nil)
	k := NewSharedKey(Filter{SubjectID: "math"}, 5, 1)
	cache.Put(k, makeQuestions("math", "", 15))
	cache.Put(NewSharedKey(Filter{SubjectID: "physics"}, 5, 1), makeQuestions("physics", "", 10))
	cache.Get(k)
	cache.Get(NewSharedKey(Filter{SubjectID: "biology"}, 5, 1))

	stats := cache.Stats()

	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
	assert.Equal(t, 25, stats.PooledQuestions)
	assert.Greater(t, stats.EstimatedMemoryBytes, 0)
	assert.Equal(t, map[string]int{"math": 1, "physics": 1}, stats.EntriesBySubject)
	assert.Equal(t, int64(2), stats.UsageBySubject["math"])
}

func TestHitRate_NoLookups(t *testing.T) {
	assert.Equal(t, 0.0, hitRate(0, 0))
}
