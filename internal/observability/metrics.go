package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const namespace = "frontline"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	gateAcquire  *prometheus.CounterVec
	gateWait     *prometheus.HistogramVec
	gateDegraded prometheus.Gauge

	pipelineItems  *prometheus.CounterVec
	eventsCreated  *prometheus.CounterVec
	classifierReqs *prometheus.CounterVec
	classifierTime *prometheus.HistogramVec
	geocodeLookups *prometheus.CounterVec

	reliabilityUpdates *prometheus.CounterVec
	schedulerDispatch  *prometheus.CounterVec

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec

	snapshotsCreated   *prometheus.CounterVec
	snapshotsCompacted prometheus.Counter

	busPublished *prometheus.CounterVec

	pgStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process metrics, or nil when Init has not run. Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds a metrics set on its own registry. Tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "api_inflight_requests",
			Help: "API requests currently being served.",
		}),
		gateAcquire: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gate_acquire_total",
			Help: "Coordination gate acquisitions by outcome (acquired, timeout, fail_open).",
		}, []string{"outcome"}),
		gateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "gate_wait_seconds",
			Help:    "Time spent waiting for the coordination gate.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 3, 10, 30, 60, 120},
		}, []string{"outcome"}),
		gateDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gate_degraded",
			Help: "1 while the gate store is unreachable and acquisitions fail open.",
		}),
		pipelineItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pipeline_items_total",
			Help: "Candidate items by pipeline outcome.",
		}, []string{"outcome"}),
		eventsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_created_total",
			Help: "Persisted events by category.",
		}, []string{"category"}),
		classifierReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "classifier_requests_total",
			Help: "Classifier calls by provider and status.",
		}, []string{"provider", "status"}),
		classifierTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "classifier_duration_seconds",
			Help:    "Classifier call latency by provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"provider"}),
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "geocode_lookups_total",
			Help: "Geocode resolutions by tier.",
		}, []string{"tier"}),
		reliabilityUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reliability_updates_total",
			Help: "Reliability ledger updates by outcome and resulting status.",
		}, []string{"outcome", "status"}),
		schedulerDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_dispatch_total",
			Help: "Scheduled tasks by mode (live, historical).",
		}, []string{"mode"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "task_runs_total",
			Help: "Ingest task executions by type and status.",
		}, []string{"type", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "task_duration_seconds",
			Help:    "Ingest task execution time.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"type", "status"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "task_queue_depth",
			Help: "Ingest task queue depth by status.",
		}, []string{"status"}),
		snapshotsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshots_created_total",
			Help: "Territory snapshots written by source.",
		}, []string{"source"}),
		snapshotsCompacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshots_compacted_total",
			Help: "Territory snapshots removed by compaction.",
		}),
		busPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bus_published_total",
			Help: "Messages published on the event bus by topic and status.",
		}, []string{"topic", "status"}),
		pgStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "db_pool",
			Help: "Database pool stats.",
		}, []string{"stat"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_up",
			Help: "Redis connectivity (1=up, 0=down).",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_ping_seconds",
			Help: "Redis ping latency.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.gateAcquire, m.gateWait, m.gateDegraded,
		m.pipelineItems, m.eventsCreated, m.classifierReqs, m.classifierTime, m.geocodeLookups,
		m.reliabilityUpdates, m.schedulerDispatch,
		m.taskRuns, m.taskDuration, m.queueDepth,
		m.snapshotsCreated, m.snapshotsCompacted,
		m.busPublished,
		m.pgStats, m.redisUp, m.redisPing,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveGate(outcome string, wait time.Duration) {
	if m == nil {
		return
	}
	m.gateAcquire.WithLabelValues(outcome).Inc()
	m.gateWait.WithLabelValues(outcome).Observe(wait.Seconds())
}

func (m *Metrics) SetGateDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.gateDegraded.Set(1)
		return
	}
	m.gateDegraded.Set(0)
}

func (m *Metrics) IncPipelineItem(outcome string) {
	if m == nil {
		return
	}
	m.pipelineItems.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddEventsCreated(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	if category == "" {
		category = "none"
	}
	m.eventsCreated.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) ObserveClassifier(provider, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.classifierReqs.WithLabelValues(provider, status).Inc()
	m.classifierTime.WithLabelValues(provider).Observe(dur.Seconds())
}

func (m *Metrics) IncGeocode(tier string) {
	if m == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncReliabilityUpdate(outcome, status string) {
	if m == nil {
		return
	}
	m.reliabilityUpdates.WithLabelValues(outcome, status).Inc()
}

func (m *Metrics) AddSchedulerDispatch(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.schedulerDispatch.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) ObserveTask(taskType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(taskType, status).Inc()
	m.taskDuration.WithLabelValues(taskType, status).Observe(dur.Seconds())
}

func (m *Metrics) IncSnapshotCreated(source string) {
	if m == nil {
		return
	}
	m.snapshotsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) AddSnapshotsCompacted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.snapshotsCompacted.Add(float64(n))
}

func (m *Metrics) IncBusPublished(topic, status string) {
	if m == nil {
		return
	}
	m.busPublished.WithLabelValues(topic, status).Inc()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.pgStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartTaskQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{
		types.TaskStatusQueued,
		types.TaskStatusRunning,
		types.TaskStatusDeferred,
		types.TaskStatusSucceeded,
		types.TaskStatusFailed,
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.WithLabelValues(s).Set(0)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.IngestTask{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: task queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					status := strings.TrimSpace(row.Status)
					if status == "" {
						status = "unknown"
					}
					m.queueDepth.WithLabelValues(status).Set(float64(row.Count))
				}
			}
		}
	}()
}
