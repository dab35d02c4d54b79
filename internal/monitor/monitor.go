package monitor

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Metrics represents all the application metrics
type Metrics struct {
	// Run metrics
	RunsTotal prometheus.Counter
	RunActive prometheus.Gauge

	// Per-video outcome counters
	VideoOutcomes *prometheus.CounterVec

	// Fetch metrics
	FetchDuration *prometheus.HistogramVec
	FetchSize     *prometheus.HistogramVec

	// Listing metrics
	ListingErrors *prometheus.CounterVec

	// State persistence metrics
	StateFlushes      prometheus.Counter
	StateFlushSeconds prometheus.Histogram

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumble_backup_runs_total",
			Help: "Total number of backup runs started",
		}),

		RunActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rumble_backup_run_active",
			Help: "Whether a backup run is currently active",
		}),

		VideoOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rumble_backup_videos_total",
				Help: "Total per-video outcomes",
			},
			[]string{"channel", "outcome"},
		),

		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rumble_backup_fetch_duration_seconds",
				Help:    "Time spent fetching videos",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"channel"},
		),

		FetchSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rumble_backup_fetch_size_bytes",
				Help:    "Size of fetched media files",
				Buckets: []float64{1e6, 1e7, 1e8, 1e9, 5e9, 1e10}, // 1MB to 10GB
			},
			[]string{"channel"},
		),

		ListingErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rumble_backup_listing_errors_total",
				Help: "Total channel listing failures by class",
			},
			[]string{"class"},
		),

		StateFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumble_backup_state_flushes_total",
			Help: "Total state file writes",
		}),

		StateFlushSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rumble_backup_state_flush_duration_seconds",
			Help:    "Time spent writing the state file",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
		}),

		Goroutines: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rumble_backup_goroutines",
			Help: "Number of goroutines",
		}),

		MemoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rumble_backup_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:  NewMetrics(),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the monitoring system
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.metrics.MemoryUsage.Set(float64(memStats.Alloc))

		case <-m.stopChan:
			return
		}
	}
}

// RecordRunStarted records the start of a backup run
func (m *Monitor) RecordRunStarted() {
	m.metrics.RunsTotal.Inc()
	m.metrics.RunActive.Set(1)
}

// RecordRunFinished records the end of a backup run
func (m *Monitor) RecordRunFinished() {
	m.metrics.RunActive.Set(0)
}

// RecordVideoOutcome records one video outcome for a channel
func (m *Monitor) RecordVideoOutcome(channel, outcome string) {
	m.metrics.VideoOutcomes.WithLabelValues(channel, outcome).Inc()
}

// RecordFetch records the duration and size of a successful fetch
func (m *Monitor) RecordFetch(channel string, duration time.Duration, size int64) {
	m.metrics.FetchDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if size > 0 {
		m.metrics.FetchSize.WithLabelValues(channel).Observe(float64(size))
	}
}

// RecordListingError records a channel listing failure
func (m *Monitor) RecordListingError(class string) {
	m.metrics.ListingErrors.WithLabelValues(class).Inc()
}

// RecordStateFlush records one state file write
func (m *Monitor) RecordStateFlush(duration time.Duration) {
	m.metrics.StateFlushes.Inc()
	m.metrics.StateFlushSeconds.Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// HealthCheck performs a health check
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}
