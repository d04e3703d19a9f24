package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks sim-core performance.
type SystemMetrics struct {
	// Latency histograms
	TradeTickLatency  *LatencyHistogram
	PriceTickLatency  *LatencyHistogram
	SettlementLatency *LatencyHistogram
	DBLatency         *LatencyHistogram
	APILatency        *LatencyHistogram

	// Counters
	tradesOpened     uint64
	tradesSettled    uint64
	ticksProcessed   uint64
	signalsGenerated uint64
	errorsCount      uint64
	apiRequests      uint64
	apiErrors        uint64
}

// LatencyHistogram tracks latency samples with a sliding window and lazily
// computed stats.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		TradeTickLatency:  NewLatencyHistogram(1000),
		PriceTickLatency:  NewLatencyHistogram(1000),
		SettlementLatency: NewLatencyHistogram(1000),
		DBLatency:         NewLatencyHistogram(1000),
		APILatency:        NewLatencyHistogram(1000),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99, recomputed only when samples
// changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementTradesOpened increments the opened-trades counter.
func (m *SystemMetrics) IncrementTradesOpened() {
	atomic.AddUint64(&m.tradesOpened, 1)
}

// IncrementTradesSettled adds settled trades to the counter.
func (m *SystemMetrics) IncrementTradesSettled(n int) {
	atomic.AddUint64(&m.tradesSettled, uint64(n))
}

// IncrementTicks increments the processed-ticks counter.
func (m *SystemMetrics) IncrementTicks() {
	atomic.AddUint64(&m.ticksProcessed, 1)
}

// IncrementSignals increments the generated-signals counter.
func (m *SystemMetrics) IncrementSignals() {
	atomic.AddUint64(&m.signalsGenerated, 1)
}

// IncrementErrors increments the error counter.
func (m *SystemMetrics) IncrementErrors() {
	atomic.AddUint64(&m.errorsCount, 1)
}

// IncrementAPI increments the served-requests counter.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors increments the 4xx/5xx response counter.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// MetricsSnapshot is a point-in-time metrics view.
type MetricsSnapshot struct {
	TradeTickLatency  LatencyStats `json:"trade_tick_latency"`
	PriceTickLatency  LatencyStats `json:"price_tick_latency"`
	SettlementLatency LatencyStats `json:"settlement_latency"`
	DBLatency         LatencyStats `json:"db_latency"`
	APILatency        LatencyStats `json:"api_latency"`
	TradesOpened      uint64       `json:"trades_opened"`
	TradesSettled     uint64       `json:"trades_settled"`
	TicksProcessed    uint64       `json:"ticks_processed"`
	SignalsGenerated  uint64       `json:"signals_generated"`
	ErrorsCount       uint64       `json:"errors_count"`
	APIRequests       uint64       `json:"api_requests"`
	APIErrors         uint64       `json:"api_errors"`
	GoroutineCount    int          `json:"goroutine_count"`
	HeapAlloc         uint64       `json:"heap_alloc_bytes"`
	HeapSys           uint64       `json:"heap_sys_bytes"`
	Timestamp         time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		TradeTickLatency:  m.TradeTickLatency.Stats(),
		PriceTickLatency:  m.PriceTickLatency.Stats(),
		SettlementLatency: m.SettlementLatency.Stats(),
		DBLatency:         m.DBLatency.Stats(),
		APILatency:        m.APILatency.Stats(),
		TradesOpened:      atomic.LoadUint64(&m.tradesOpened),
		TradesSettled:     atomic.LoadUint64(&m.tradesSettled),
		TicksProcessed:    atomic.LoadUint64(&m.ticksProcessed),
		SignalsGenerated:  atomic.LoadUint64(&m.signalsGenerated),
		ErrorsCount:       atomic.LoadUint64(&m.errorsCount),
		APIRequests:       atomic.LoadUint64(&m.apiRequests),
		APIErrors:         atomic.LoadUint64(&m.apiErrors),
		GoroutineCount:    runtime.NumGoroutine(),
		HeapAlloc:         memStats.HeapAlloc,
		HeapSys:           memStats.HeapSys,
		Timestamp:         time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
