package examcache

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 256

// stripedLock - таблица мьютексов, выбираемых по хешу ключа.
// Разные ключи могут попасть в один мьютекс; один ключ всегда в один.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = defaultLockStripes
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLock) stripe(parts ...string) *sync.Mutex {
	hasher := fnv.New32a()
	for _, p := range parts {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	return &l.stripes[hasher.Sum32()%uint32(len(l.stripes))]
}

// Lock блокирует ключ и возвращает функцию разблокировки
func (l *stripedLock) Lock(parts ...string) func() {
	mu := l.stripe(parts...)
	mu.Lock()
	return mu.Unlock
}
