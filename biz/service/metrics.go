package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 引擎层的业务指标
type Metrics struct {
	actions         *prometheus.CounterVec
	lockRejects     *prometheus.CounterVec
	hotPromotions   prometheus.Counter
	degradedReads   prometheus.Counter
	rankingRuns     *prometheus.CounterVec
	rankingDuration prometheus.Histogram
}

// NewMetrics 创建并注册指标，reg 为 nil 时只创建不注册 (测试用)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsatboard",
			Name:      "engagement_actions_total",
			Help:      "View and vote actions by entity kind, action and result (accepted or duplicate).",
		}, []string{"kind", "action", "result"}),
		lockRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsatboard",
			Name:      "idempotency_rejects_total",
			Help:      "Create operations rejected because the idempotency lock was held.",
		}, []string{"operation"}),
		hotPromotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kcsatboard",
			Name:      "hot_promotions_total",
			Help:      "Posts promoted to hot.",
		}),
		degradedReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kcsatboard",
			Name:      "degraded_reads_total",
			Help:      "Counter reads served as zero because the cache was unavailable.",
		}),
		rankingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsatboard",
			Name:      "ranking_runs_total",
			Help:      "Ranking recompute runs by result.",
		}, []string{"result"}),
		rankingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kcsatboard",
			Name:      "ranking_run_seconds",
			Help:      "Duration of ranking recompute runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.lockRejects, m.hotPromotions, m.degradedReads, m.rankingRuns, m.rankingDuration)
	}
	return m
}

func (m *Metrics) action(kind, action, result string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, action, result).Inc()
}

func (m *Metrics) lockRejected(op string) {
	if m == nil {
		return
	}
	m.lockRejects.WithLabelValues(op).Inc()
}

func (m *Metrics) promoted() {
	if m == nil {
		return
	}
	m.hotPromotions.Inc()
}

func (m *Metrics) degraded() {
	if m == nil {
		return
	}
	m.degradedReads.Inc()
}

func (m *Metrics) rankingRun(result string, seconds float64) {
	if m == nil {
		return
	}
	m.rankingRuns.WithLabelValues(result).Inc()
	m.rankingDuration.Observe(seconds)
}
