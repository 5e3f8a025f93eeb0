package examcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	evictReasonExpired     = "expired"
	evictReasonCapacity    = "capacity"
	evictReasonInvalidated = "invalidated"
)

// Metrics - Prometheus-метрики кеша экзаменов. Все методы безопасны для nil.
type Metrics struct {
	Requests           *prometheus.CounterVec
	SharedLookups      *prometheus.CounterVec
	Evictions          *prometheus.CounterVec
	InsufficientPools  prometheus.Counter
	RepetitionRejects  prometheus.Counter
	RepositoryDuration *prometheus.HistogramVec
	SweepRemoved       *prometheus.CounterVec
	SharedEntries      prometheus.Gauge
	Histories          prometheus.Gauge
	Ledgers            prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (если reg не nil)
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "requests_total",
				Help:      "Exam question requests by cache type and outcome",
			},
			[]string{"type", "status"},
		),
		SharedLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "shared_lookups_total",
				Help:      "Shared pool cache lookups by result",
			},
			[]string{"result"},
		),
		Evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "shared_evictions_total",
				Help:      "Shared pool entries removed, by reason",
			},
			[]string{"reason"},
		),
		InsufficientPools: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "insufficient_pools_total",
				Help:      "Pools that returned fewer candidates than requested",
			},
		),
		RepetitionRejects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "repetition_limit_rejects_total",
				Help:      "Repeat requests rejected by the repetition limit",
			},
		),
		RepositoryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "repository_duration_seconds",
				Help:      "Question repository call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		SweepRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "soaledu",
				Subsystem: "exam_cache",
				Name:      "sweep_removed_total",
				Help:      "Entries removed by background sweepers",
			},
			[]string{"store"},
		),
		SharedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soaledu",
			Subsystem: "exam_cache",
			Name:      "shared_entries",
			Help:      "Current number of shared pool entries",
		}),
		Histories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soaledu",
			Subsystem: "exam_cache",
			Name:      "purchase_histories",
			Help:      "Current number of purchase history records",
		}),
		Ledgers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soaledu",
			Subsystem: "exam_cache",
			Name:      "repetition_ledgers",
			Help:      "Current number of repetition ledgers",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Requests, m.SharedLookups, m.Evictions, m.InsufficientPools, m.RepetitionRejects,
		m.RepositoryDuration, m.SweepRemoved, m.SharedEntries, m.Histories, m.Ledgers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) incRequest(t CacheType, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Requests.WithLabelValues(string(t), status).Inc()
}

func (m *Metrics) incShared(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SharedLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) addEvictions(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) incInsufficient() {
	if m == nil {
		return
	}
	m.InsufficientPools.Inc()
}

func (m *Metrics) incRepetitionReject() {
	if m == nil {
		return
	}
	m.RepetitionRejects.Inc()
}

func (m *Metrics) observeRepository(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RepositoryDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) addSweepRemoved(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweepRemoved.WithLabelValues(store).Add(float64(n))
}

func (m *Metrics) setSharedEntries(n int) {
	if m == nil {
		return
	}
	m.SharedEntries.Set(float64(n))
}

func (m *Metrics) setStoreSizes(histories, ledgers int) {
	if m == nil {
		return
	}
	m.Histories.Set(float64(histories))
	m.Ledgers.Set(float64(ledgers))
}
