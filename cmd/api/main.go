package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ab65ed/soaledu.ir-sub005/internal/config"
	"github.com/ab65ed/soaledu.ir-sub005/internal/handler"
	"github.com/ab65ed/soaledu.ir-sub005/internal/middleware"
	pgRepo "github.com/ab65ed/soaledu.ir-sub005/internal/repository/postgres"
	redisRepo "github.com/ab65ed/soaledu.ir-sub005/internal/repository/redis"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
	"github.com/ab65ed/soaledu.ir-sub005/pkg/auth"
	"github.com/ab65ed/soaledu.ir-sub005/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db, database.DefaultMigrationsSource); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis: маркеры покупок, выдачи и rate limit
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	questionRepo := pgRepo.NewQuestionRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Метрики в собственном реестре, без глобального состояния
	var registry *prometheus.Registry
	var cacheMetrics *examcache.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		cacheMetrics, err = examcache.NewMetrics(registry)
		if err != nil {
			log.Printf("Failed to register exam cache metrics: %v", err)
			os.Exit(1)
		}
	}

	examCache, err := examcache.New(cfg.ExamCache.ToExamCacheConfig(), &examcache.Dependencies{
		QuestionRepo: questionRepo,
		Metrics:      cacheMetrics,
	})
	if err != nil {
		log.Printf("Failed to initialize exam cache: %v", err)
		os.Exit(1)
	}

	examService := service.NewExamService(examCache, cacheRepo, service.ExamServiceConfig{
		DrawTTL:           cfg.Exam.DrawTTL,
		PurchaseMarkerTTL: cfg.ExamCache.HistoryTTL,
	})
	importService := service.NewQuestionImportService(questionRepo, examCache)

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(middleware.NewRedisWindowCounter(redisClient))
	}

	router := gin.Default()

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	trustedProxies := []string{"127.0.0.1", "::1"}
	if isProduction {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.RouterDeps{
		Exam:        handler.NewExamHandler(examService),
		Admin:       handler.NewAdminHandler(examService, importService),
		Auth:        middleware.NewAuthMiddleware(jwtService),
		RateLimiter: rateLimiter,
		RateLimit:   middleware.PurchaseRateLimitConfig(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		Metrics:     registry,
		MetricsPath: cfg.Metrics.Path,
	})

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Останавливаем сборщики кеша после того, как запросы завершены
	examCache.Shutdown()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}
