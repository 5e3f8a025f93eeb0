package examcache

import (
	"context"
	"log"
	"time"
)

// startJanitors запускает две независимые периодические задачи:
// очистку истёкших общих пулов и очистку неактивных историй и журналов повторов.
func (s *Service) startJanitors(ctx context.Context) {
	s.runEvery(ctx, s.config.SharedSweepInterval, "shared pool", func() { s.sweepShared() })
	s.runEvery(ctx, s.config.HistorySweepInterval, "history", func() { s.sweepStale() })
}

func (s *Service) runEvery(ctx context.Context, interval time.Duration, name string, task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				task()
			case <-ctx.Done():
				log.Printf("[ExamCache] Завершение задачи очистки (%s)", name)
				return
			}
		}
	}()
}

// sweepShared удаляет истёкшие общие пулы
func (s *Service) sweepShared() int {
	removed := s.shared.DeleteExpired()
	s.metrics.addSweepRemoved("shared", removed)
	if removed > 0 {
		log.Printf("[ExamCache] Очистка: удалено %d истёкших общих пулов", removed)
	}
	return removed
}

// sweepStale удаляет истории и журналы без активности дольше HistoryTTL
func (s *Service) sweepStale() (histories, ledgers int) {
	histories = s.history.DeleteStale(s.config.HistoryTTL)
	ledgers = s.ledgers.DeleteStale(s.config.HistoryTTL)

	s.metrics.addSweepRemoved("history", histories)
	s.metrics.addSweepRemoved("ledger", ledgers)
	s.metrics.setStoreSizes(s.history.Len(), s.ledgers.Len())

	if histories > 0 || ledgers > 0 {
		log.Printf("[ExamCache] Очистка: удалено %d историй покупок и %d журналов повторов", histories, ledgers)
	}
	return histories, ledgers
}
