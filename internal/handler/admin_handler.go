package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/ab65ed/soaledu.ir-sub005/internal/handler/dto"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service"
	"github.com/ab65ed/soaledu.ir-sub005/internal/service/examcache"
)

// Максимальный размер загружаемого XLSX
const maxImportFileSize = 10 << 20

// QuestionImporter - импорт вопросов и объём пулов
type QuestionImporter interface {
	ImportXLSX(ctx context.Context, r io.Reader) (*service.ImportResult, error)
	CountBySubject(ctx context.Context, subjectID string) (int64, error)
}

// AdminHandler обслуживает админ-панель кеша экзаменов
type AdminHandler struct {
	exams    ExamWorkflow
	importer QuestionImporter
	now      func() time.Time
}

// NewAdminHandler создает обработчик админских запросов
func NewAdminHandler(exams ExamWorkflow, importer QuestionImporter) *AdminHandler {
	return &AdminHandler{exams: exams, importer: importer, now: time.Now}
}

// GetCacheStats возвращает снимок кеша
func (h *AdminHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.exams.CacheStats())
}

// ExportCacheStats отдаёт снимок кеша в XLSX
func (h *AdminHandler) ExportCacheStats(c *gin.Context) {
	stats := h.exams.CacheStats()
	filename := fmt.Sprintf("exam_cache_stats_%s", stats.GeneratedAt.Format("20060102_150405"))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Cache"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	rows := statsRows(stats)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminHandler] Ошибка записи строки %d: %v", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] Ошибка при Flush: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] Ошибка записи Excel в response: %v", err)
	}
}

// statsRows раскладывает снимок в строки "метрика - значение", затем разбивку по предметам
func statsRows(stats examcache.Stats) [][]interface{} {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Generated at", stats.GeneratedAt.Format(time.RFC3339)},
		{"Shared entries", stats.Shared.Entries},
		{"Shared capacity", stats.Shared.Capacity},
		{"Hits", stats.Shared.Hits},
		{"Misses", stats.Shared.Misses},
		{"Hit rate", stats.Shared.HitRate},
		{"Evictions", stats.Shared.Evictions},
		{"Expirations", stats.Shared.Expirations},
		{"Pooled questions", stats.Shared.PooledQuestions},
		{"Purchase histories", stats.PurchaseHistories},
		{"Repetition ledgers", stats.RepetitionLedgers},
		{"Estimated memory (bytes)", stats.EstimatedMemoryBytes},
		{"Shared TTL (s)", stats.Config.SharedTTLSeconds},
		{"Max repetitions", stats.Config.MaxRepetitions},
		{},
		{"Subject", "Entries", "Usage"},
	}

	subjects := make([]string, 0, len(stats.Shared.EntriesBySubject))
	for subject := range stats.Shared.EntriesBySubject {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	for _, subject := range subjects {
		rows = append(rows, []interface{}{
			sanitizeForExcel(subject),
			stats.Shared.EntriesBySubject[subject],
			stats.Shared.UsageBySubject[subject],
		})
	}
	return rows
}

// InvalidateSubject удаляет общие пулы предмета
func (h *AdminHandler) InvalidateSubject(c *gin.Context) {
	subjectID := c.GetString("subjectID")
	removed := h.exams.InvalidateSubject(subjectID)
	log.Printf("[AdminHandler] Инвалидирован предмет %s: удалено %d пулов", subjectID, removed)
	c.JSON(http.StatusOK, dto.InvalidateResponse{SubjectID: subjectID, Removed: removed})
}

// ClearSharedCache очищает общий кеш пулов
func (h *AdminHandler) ClearSharedCache(c *gin.Context) {
	removed := h.exams.ClearSharedCache()
	log.Printf("[AdminHandler] Общий кеш очищен: удалено %d пулов", removed)
	c.JSON(http.StatusOK, dto.InvalidateResponse{Removed: removed})
}

// GetLearnerStats возвращает статистику произвольного учащегося
func (h *AdminHandler) GetLearnerStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.exams.LearnerStats(c.GetString("learnerID")))
}

// ImportQuestions принимает XLSX (multipart поле "file")
func (h *AdminHandler) ImportQuestions(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "error_type": "validation_error"})
		return
	}
	if header.Size > maxImportFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large", "error_type": "file_too_large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Printf("[AdminHandler] Не удалось открыть загруженный файл: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file", "error_type": "validation_error"})
		return
	}
	defer file.Close()

	result, err := h.importer.ImportXLSX(c.Request.Context(), file)
	if err != nil {
		if errors.Is(err, service.ErrImportFile) && result != nil {
			// Построчные ошибки возвращаем целиком, чтобы их можно было исправить за один раз
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      err.Error(),
				"error_type": "import_rows_invalid",
				"rows":       result.Errors,
			})
			return
		}
		handleExamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewImportResponse(result, h.now()))
}

// CountQuestions возвращает число вопросов предмета
func (h *AdminHandler) CountQuestions(c *gin.Context) {
	subjectID := c.GetString("subjectID")
	count, err := h.importer.CountBySubject(c.Request.Context(), subjectID)
	if err != nil {
		handleExamError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.QuestionCountResponse{SubjectID: subjectID, Count: count})
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
