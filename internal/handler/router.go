package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ab65ed/soaledu.ir-sub005/internal/middleware"
)

// RouterDeps - всё, что нужно для регистрации маршрутов
type RouterDeps struct {
	Exam        *ExamHandler
	Admin       *AdminHandler
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter // nil - без ограничения частоты
	RateLimit   middleware.RateLimitConfig
	Metrics     *prometheus.Registry // nil - /metrics не публикуется
	MetricsPath string
}

// RegisterRoutes настраивает маршруты API экзаменов
func RegisterRoutes(router gin.IRouter, deps RouterDeps) {
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{EnableOpenMetrics: true})))
	}

	api := router.Group("/api")

	// Экзамены учащегося
	exams := api.Group("/exams")
	exams.Use(deps.Auth.RequireAuth())
	{
		limited := exams.Group("")
		if deps.RateLimiter != nil {
			limited.Use(deps.RateLimiter.Limit(deps.RateLimit))
		}
		limited.POST("/questions", deps.Exam.DrawQuestions)
		limited.POST("/purchases", deps.Exam.RecordPurchase)

		exams.POST("/:examId/repeat", middleware.ExtractUUIDParam("examId", "examID"), deps.Exam.RepeatExam)
		exams.GET("/me/stats", deps.Exam.GetMyStats)
	}

	// Админ-панель кеша
	admin := api.Group("/admin")
	admin.Use(deps.Auth.RequireAuth(), deps.Auth.AdminOnly())
	{
		cache := admin.Group("/exam-cache")
		{
			cache.GET("/stats", deps.Admin.GetCacheStats)
			cache.GET("/stats.xlsx", deps.Admin.ExportCacheStats)
			cache.DELETE("", deps.Admin.ClearSharedCache)
			cache.DELETE("/subjects/:subjectId", middleware.ExtractIDParam("subjectId", "subjectID"), deps.Admin.InvalidateSubject)
			cache.GET("/learners/:learnerId", middleware.ExtractIDParam("learnerId", "learnerID"), deps.Admin.GetLearnerStats)
		}

		admin.POST("/questions/import", deps.Admin.ImportQuestions)
		admin.GET("/subjects/:subjectId/questions/count", middleware.ExtractIDParam("subjectId", "subjectID"), deps.Admin.CountQuestions)
	}
}
