package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	startedAt    time.Time
	requestCount map[string]int64
	requestNanos map[string]int64
	errorCount   map[string]int64
	ticketEvents map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds  float64          `json:"uptimeSeconds"`
	Requests       map[string]int64 `json:"requests"`
	AvgLatencyMs   map[string]int64 `json:"avgLatencyMs"`
	Errors         map[string]int64 `json:"errors"`
	TicketActivity map[string]int64 `json:"ticketActivity"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:    time.Now(),
		requestCount: make(map[string]int64),
		requestNanos: make(map[string]int64),
		errorCount:   make(map[string]int64),
		ticketEvents: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestNanos[key] += duration.Nanoseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTicketEvent counts a published ticket event by type.
func (m *Metrics) RecordTicketEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketEvents[eventType]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds:  time.Since(m.startedAt).Seconds(),
		Requests:       copyCounts(m.requestCount),
		AvgLatencyMs:   make(map[string]int64, len(m.requestCount)),
		Errors:         copyCounts(m.errorCount),
		TicketActivity: copyCounts(m.ticketEvents),
	}
	for key, count := range m.requestCount {
		if count > 0 {
			snap.AvgLatencyMs[key] = time.Duration(m.requestNanos[key] / count).Milliseconds()
		}
	}
	return snap
}

// Uptime reports how long the process has been collecting metrics.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startedAt)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
