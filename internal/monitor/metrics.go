// Package monitor tracks gateway counters and API latency.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks overall gateway activity.
type Metrics struct {
	APILatency *LatencyHistogram

	apiRequests    uint64
	apiErrors      uint64
	ticksPublished uint64
	ordersPlaced   uint64
	ordersFailed   uint64
	closesDone     uint64

	start time.Time
}

// New creates a metrics instance.
func New() *Metrics {
	return &Metrics{
		APILatency: NewLatencyHistogram(1000),
		start:      time.Now(),
	}
}

// LatencyHistogram tracks latency samples over a sliding window.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
	}
}

// RecordDuration adds one sample.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	ms := float64(d.Nanoseconds()) / 1e6
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, ms)
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Count int     `json:"count"`
}

// Stats computes the current window statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

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
	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		Count: n,
	}
}

func (m *Metrics) IncrementAPI()       { atomic.AddUint64(&m.apiRequests, 1) }
func (m *Metrics) IncrementAPIErrors() { atomic.AddUint64(&m.apiErrors, 1) }
func (m *Metrics) IncrementTicks()     { atomic.AddUint64(&m.ticksPublished, 1) }
func (m *Metrics) IncrementOrders()    { atomic.AddUint64(&m.ordersPlaced, 1) }
func (m *Metrics) IncrementFailed()    { atomic.AddUint64(&m.ordersFailed, 1) }
func (m *Metrics) IncrementCloses()    { atomic.AddUint64(&m.closesDone, 1) }

// Snapshot is a point-in-time view served by the metrics endpoint.
type Snapshot struct {
	APIRequests    uint64       `json:"api_requests"`
	APIErrors      uint64       `json:"api_errors"`
	APILatency     LatencyStats `json:"api_latency"`
	TicksPublished uint64       `json:"ticks_published"`
	OrdersPlaced   uint64       `json:"orders_placed"`
	OrdersFailed   uint64       `json:"orders_failed"`
	ClosesDone     uint64       `json:"closes_done"`
	UptimeSeconds  float64      `json:"uptime_seconds"`
	GoroutineCount int          `json:"goroutine_count"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns the current counters.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		APIRequests:    atomic.LoadUint64(&m.apiRequests),
		APIErrors:      atomic.LoadUint64(&m.apiErrors),
		APILatency:     m.APILatency.Stats(),
		TicksPublished: atomic.LoadUint64(&m.ticksPublished),
		OrdersPlaced:   atomic.LoadUint64(&m.ordersPlaced),
		OrdersFailed:   atomic.LoadUint64(&m.ordersFailed),
		ClosesDone:     atomic.LoadUint64(&m.closesDone),
		UptimeSeconds:  time.Since(m.start).Seconds(),
		GoroutineCount: runtime.NumGoroutine(),
		Timestamp:      time.Now(),
	}
}
