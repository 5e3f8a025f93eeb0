package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  host: localhost
  user: soaledu
  dbname: soaledu
jwt:
  secret: test-secret
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "single", cfg.Redis.Mode)
	assert.Equal(t, time.Hour, cfg.Exam.DrawTTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, examcache.DefaultConfig(), cfg.ExamCache.ToExamCacheConfig(),
		"Значения exam_cache по умолчанию совпадают с DefaultConfig")
}

func TestLoad_ExamCacheFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
exam_cache:
  shared_ttl: 2h
  shared_capacity: 10
  max_repetitions: 5
  history_ttl: 168h
  reject_insufficient_pool: true
rate_limit:
  max_requests: 5
  window: 30s
`))
	require.NoError(t, err)

	ec := cfg.ExamCache.ToExamCacheConfig()
	assert.Equal(t, 2*time.Hour, ec.SharedTTL)
	assert.Equal(t, 10, ec.SharedCapacity)
	assert.Equal(t, 5, ec.MaxRepetitions)
	assert.Equal(t, 7*24*time.Hour, ec.HistoryTTL)
	assert.True(t, ec.RejectInsufficientPool)
	assert.Equal(t, examcache.DefaultOversamplingFactor, ec.OversamplingFactor)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("EXAM_CACHE_MAX_REPETITIONS", "4")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.ExamCache.MaxRepetitions)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"нет секрета JWT", `
database:
  host: localhost
  user: soaledu
  dbname: soaledu
`},
		{"неполная БД", `
jwt:
  secret: s
database:
  host: localhost
`},
		{"некорректный кеш", minimalConfig + `
exam_cache:
  shared_capacity: 0
`},
		{"некорректный rate limit", minimalConfig + `
rate_limit:
  max_requests: 0
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_ConnectionStrings(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "exams", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=exams sslmode=disable", d.PostgresConnectionString())
	assert.Equal(t, "postgres://u:p@db:5432/exams?sslmode=disable", d.PostgresURL())
}
