package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	ExamCache ExamCacheConfig `mapstructure:"exam_cache"`
	Exam      ExamConfig      `mapstructure:"exam"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // секунды
	WriteTimeout   int      `mapstructure:"write_timeout"` // секунды
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'. Используется, если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // миллисекунды
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // миллисекунды
}

// JWTConfig содержит настройки проверки токенов учащихся и администраторов
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	ExpirationHrs int    `mapstructure:"expiration_hrs"`
}

// ExamCacheConfig - настройки кеша пулов вопросов
type ExamCacheConfig struct {
	SharedTTL              time.Duration `mapstructure:"shared_ttl"`
	SharedCapacity         int           `mapstructure:"shared_capacity"`
	OversamplingFactor     int           `mapstructure:"oversampling_factor"`
	MaxPoolSize            int           `mapstructure:"max_pool_size"`
	MaxRepetitions         int           `mapstructure:"max_repetitions"`
	HistoryTTL             time.Duration `mapstructure:"history_ttl"`
	SharedSweepInterval    time.Duration `mapstructure:"shared_sweep_interval"`
	HistorySweepInterval   time.Duration `mapstructure:"history_sweep_interval"`
	RepositoryTimeout      time.Duration `mapstructure:"repository_timeout"`
	RejectInsufficientPool bool          `mapstructure:"reject_insufficient_pool"`
}

// ExamConfig - настройки процесса покупки
type ExamConfig struct {
	DrawTTL time.Duration `mapstructure:"draw_ttl"`
}

// RateLimitConfig - ограничение частоты запросов покупки
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// MetricsConfig - экспорт метрик Prometheus
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ToExamCacheConfig переводит секцию exam_cache в конфигурацию сервиса кеша
func (c ExamCacheConfig) ToExamCacheConfig() *examcache.Config {
	return &examcache.Config{
		SharedTTL:              c.SharedTTL,
		SharedCapacity:         c.SharedCapacity,
		OversamplingFactor:     c.OversamplingFactor,
		MaxPoolSize:            c.MaxPoolSize,
		MaxRepetitions:         c.MaxRepetitions,
		HistoryTTL:             c.HistoryTTL,
		SharedSweepInterval:    c.SharedSweepInterval,
		HistorySweepInterval:   c.HistorySweepInterval,
		RepositoryTimeout:      c.RepositoryTimeout,
		RejectInsufficientPool: c.RejectInsufficientPool,
	}
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 30)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("jwt.issuer", "soaledu")
	vip.SetDefault("jwt.expiration_hrs", 24)

	def := examcache.DefaultConfig()
	vip.SetDefault("exam_cache.shared_ttl", def.SharedTTL)
	vip.SetDefault("exam_cache.shared_capacity", def.SharedCapacity)
	vip.SetDefault("exam_cache.oversampling_factor", def.OversamplingFactor)
	vip.SetDefault("exam_cache.max_pool_size", def.MaxPoolSize)
	vip.SetDefault("exam_cache.max_repetitions", def.MaxRepetitions)
	vip.SetDefault("exam_cache.history_ttl", def.HistoryTTL)
	vip.SetDefault("exam_cache.shared_sweep_interval", def.SharedSweepInterval)
	vip.SetDefault("exam_cache.history_sweep_interval", def.HistorySweepInterval)
	vip.SetDefault("exam_cache.repository_timeout", def.RepositoryTimeout)
	vip.SetDefault("exam_cache.reject_insufficient_pool", false)

	vip.SetDefault("exam.draw_ttl", time.Hour)

	vip.SetDefault("rate_limit.enabled", true)
	vip.SetDefault("rate_limit.max_requests", 30)
	vip.SetDefault("rate_limit.window", time.Minute)

	vip.SetDefault("metrics.enabled", true)
	vip.SetDefault("metrics.path", "/metrics")
}

func bindEnv(vip *viper.Viper) {
	// Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expiration_hrs", "JWT_EXPIRATION_HRS")

	// Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Exam cache
	vip.BindEnv("exam_cache.shared_ttl", "EXAM_CACHE_SHARED_TTL")
	vip.BindEnv("exam_cache.shared_capacity", "EXAM_CACHE_SHARED_CAPACITY")
	vip.BindEnv("exam_cache.max_repetitions", "EXAM_CACHE_MAX_REPETITIONS")
	vip.BindEnv("exam_cache.history_ttl", "EXAM_CACHE_HISTORY_TTL")
	vip.BindEnv("exam_cache.reject_insufficient_pool", "EXAM_CACHE_REJECT_INSUFFICIENT_POOL")

	vip.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	vip.BindEnv("metrics.enabled", "METRICS_ENABLED")
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл не обязателен: значения могут прийти из окружения
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Exam Cache: TTL=%v capacity=%d oversampling=%d maxRepetitions=%d",
			cfg.ExamCache.SharedTTL, cfg.ExamCache.SharedCapacity, cfg.ExamCache.OversamplingFactor, cfg.ExamCache.MaxRepetitions)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if err := c.ExamCache.ToExamCacheConfig().Validate(); err != nil {
		return fmt.Errorf("invalid exam_cache section: %w", err)
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit.max_requests and rate_limit.window must be positive")
	}
	return nil
}
