package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for import telemetry and HTTP traffic.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	filesByResult map[string]int64
	droppedRows   int64
	ghostsFound   int64
	ghostsCleared int64
	upsertFailed  int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		filesByResult: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
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

// RecordFile counts a processed file by profile and outcome.
func (m *Metrics) RecordFile(profile, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesByResult[profile+"|"+outcome]++
}

// RecordDroppedRows counts rows discarded for a missing unique key.
func (m *Metrics) RecordDroppedRows(n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedRows += int64(n)
}

// RecordGhosts counts ghost candidates surfaced by reconciliation.
func (m *Metrics) RecordGhosts(n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ghostsFound += int64(n)
}

// RecordGhostResolved counts resolved ghost records.
func (m *Metrics) RecordGhostResolved(n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ghostsCleared += int64(n)
}

// RecordUpsertFailures counts rows rejected by the store during commit.
func (m *Metrics) RecordUpsertFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertFailed += int64(n)
}

// Snapshot returns a copy of all counters for diagnostics endpoints.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.requestCount)+len(m.errorCount)+len(m.filesByResult)+4)
	for k, v := range m.requestCount {
		out["http_requests|"+k] = v
	}
	for k, v := range m.errorCount {
		out["http_errors|"+k] = v
	}
	for k, v := range m.filesByResult {
		out["import_files|"+k] = v
	}
	out["import_rows_dropped"] = m.droppedRows
	out["import_ghosts_found"] = m.ghostsFound
	out["import_ghosts_resolved"] = m.ghostsCleared
	out["import_upsert_failures"] = m.upsertFailed
	return out
}
