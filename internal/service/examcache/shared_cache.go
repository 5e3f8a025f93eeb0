package examcache

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ab65ed/soaledu.ir-sub005/internal/domain/entity"
)

// SharedKey - компоненты ключа общего кеша
type SharedKey struct {
	SubjectID         string
	Difficulty        string
	CategorySignature string
	TagSignature      string
	Count             int
	SequenceNumber    int
}

// NewSharedKey строит ключ; категории и теги сортируются,
// поэтому порядок фильтров в запросе не влияет на равенство ключей.
func NewSharedKey(filter Filter, count, sequenceNumber int) SharedKey {
	return SharedKey{
		SubjectID:         filter.SubjectID,
		Difficulty:        filter.Difficulty,
		CategorySignature: strings.Join(sortedCopy(filter.Categories), ","),
		TagSignature:      strings.Join(sortedCopy(filter.Tags), ","),
		Count:             count,
		SequenceNumber:    sequenceNumber,
	}
}

// String возвращает строковое представление ключа (используется в singleflight и логах)
func (k SharedKey) String() string {
	return fmt.Sprintf("pool:%s:%s:c=%s:t=%s:n=%d:s=%d",
		k.SubjectID, k.Difficulty, k.CategorySignature, k.TagSignature, k.Count, k.SequenceNumber)
}

// SharedPoolCache - общий кеш пулов для первой покупки предмета.
// Записи живут TTL от создания; при переполнении вытесняется запись
// с самым старым LastUsedAt.
type SharedPoolCache struct {
	mu       sync.Mutex
	entries  map[SharedKey]*CacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
	metrics  *Metrics

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewSharedPoolCache создаёт общий кеш
func NewSharedPoolCache(ttl time.Duration, capacity int, now func() time.Time, metrics *Metrics) *SharedPoolCache {
	if now == nil {
		now = time.Now
	}
	return &SharedPoolCache{
		entries:  make(map[SharedKey]*CacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
		metrics:  metrics,
	}
}

// Get возвращает копию записи, если она есть и не истекла.
// На попадании увеличивает UsageCount и обновляет LastUsedAt.
func (c *SharedPoolCache) Get(key SharedKey) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, found := c.entries[key]
	if !found {
		c.misses++
		c.metrics.incShared(false)
		return CacheEntry{}, false
	}
	if !entry.Valid(now) {
		// Ленивое удаление: устаревшие данные не выдаём
		delete(c.entries, key)
		c.expirations++
		c.misses++
		c.metrics.incShared(false)
		c.metrics.addEvictions(evictReasonExpired, 1)
		c.metrics.setSharedEntries(len(c.entries))
		return CacheEntry{}, false
	}

	entry.UsageCount++
	entry.LastUsedAt = now
	c.hits++
	c.metrics.incShared(true)
	return *entry, true
}

// Put вставляет пул под ключом. Срез вопросов копируется.
func (c *SharedPoolCache) Put(key SharedKey, questions []entity.QuestionRecord) CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		// Ёмкость считается по живым записям: сначала убираем истёкшие
		if c.deleteExpiredLocked(now) == 0 {
			c.evictOldestLocked()
		}
	}

	pool := make([]entity.QuestionRecord, len(questions))
	copy(pool, questions)

	entry := &CacheEntry{
		SubjectID:              key.SubjectID,
		Difficulty:             key.Difficulty,
		CategorySignature:      key.CategorySignature,
		TagSignature:           key.TagSignature,
		PurchaseSequenceNumber: key.SequenceNumber,
		Questions:              pool,
		CreatedAt:              now,
		ExpiresAt:              now.Add(c.ttl),
		UsageCount:             1,
		LastUsedAt:             now,
	}
	c.entries[key] = entry
	c.metrics.setSharedEntries(len(c.entries))
	return *entry
}

// evictOldestLocked удаляет одну запись с самым старым LastUsedAt
func (c *SharedPoolCache) evictOldestLocked() {
	var (
		oldestKey SharedKey
		oldest    *CacheEntry
	)
	for k, e := range c.entries {
		if oldest == nil || e.LastUsedAt.Before(oldest.LastUsedAt) {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldestKey)
	c.evictions++
	c.metrics.addEvictions(evictReasonCapacity, 1)
	log.Printf("[ExamCache] Вытеснен общий пул %s (last used %s)", oldestKey, oldest.LastUsedAt.Format(time.RFC3339))
}

// DeleteExpired удаляет истёкшие записи и возвращает их количество
func (c *SharedPoolCache) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteExpiredLocked(c.now())
}

func (c *SharedPoolCache) deleteExpiredLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if !e.Valid(now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.expirations += int64(removed)
	c.metrics.addEvictions(evictReasonExpired, removed)
	c.metrics.setSharedEntries(len(c.entries))
	return removed
}

// InvalidateSubject удаляет все пулы предмета
func (c *SharedPoolCache) InvalidateSubject(subjectID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if k.SubjectID == subjectID {
			delete(c.entries, k)
			removed++
		}
	}
	c.metrics.addEvictions(evictReasonInvalidated, removed)
	c.metrics.setSharedEntries(len(c.entries))
	return removed
}

// Clear удаляет все записи
func (c *SharedPoolCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[SharedKey]*CacheEntry)
	c.metrics.addEvictions(evictReasonInvalidated, removed)
	c.metrics.setSharedEntries(0)
	return removed
}

// Len возвращает количество записей (включая ещё не удалённые истёкшие)
func (c *SharedPoolCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// HitRate - доля попаданий среди всех обращений; 0, если обращений не было
func (c *SharedPoolCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return hitRate(c.hits, c.misses)
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// SharedCacheStats - снимок состояния общего кеша
type SharedCacheStats struct {
	Entries              int              `json:"entries"`
	Capacity             int              `json:"capacity"`
	Hits                 int64            `json:"hits"`
	Misses               int64            `json:"misses"`
	HitRate              float64          `json:"hitRate"`
	Evictions            int64            `json:"evictions"`
	Expirations          int64            `json:"expirations"`
	PooledQuestions      int              `json:"pooledQuestions"`
	EstimatedMemoryBytes int              `json:"estimatedMemoryBytes"`
	EntriesBySubject     map[string]int   `json:"entriesBySubject"`
	UsageBySubject       map[string]int64 `json:"usageBySubject"`
}

// Stats собирает снимок статистики
func (c *SharedPoolCache) Stats() SharedCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := SharedCacheStats{
		Entries:          len(c.entries),
		Capacity:         c.capacity,
		Hits:             c.hits,
		Misses:           c.misses,
		HitRate:          hitRate(c.hits, c.misses),
		Evictions:        c.evictions,
		Expirations:      c.expirations,
		EntriesBySubject: make(map[string]int),
		UsageBySubject:   make(map[string]int64),
	}
	for k, e := range c.entries {
		stats.PooledQuestions += len(e.Questions)
		stats.EstimatedMemoryBytes += entryOverheadBytes + len(k.String())
		for _, q := range e.Questions {
			stats.EstimatedMemoryBytes += q.ApproxSize()
		}
		stats.EntriesBySubject[k.SubjectID]++
		stats.UsageBySubject[k.SubjectID] += int64(e.UsageCount)
	}
	return stats
}

// Примерный размер служебных полей записи
const entryOverheadBytes = 256
