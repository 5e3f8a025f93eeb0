package repository

import (
	"context"
	"time"
)

// CacheRepository определяет методы для работы с внешним кешем (Redis)
type CacheRepository interface {
	// SetNX устанавливает значение ключа, только если ключ не существует.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// GetJSON возвращает apperrors.ErrNotFound, если ключа нет
	GetJSON(ctx context.Context, key string, dest interface{}) error
}
