package metrics

import (
	"sync"
	"time"
)

// Collector gathers in-process counters, gauges and latency samples
type Collector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	gauges              map[string]float64
	requestCounts       map[string]int64
	requestLatencies    map[string][]time.Duration
	scanCounts          map[string]int64
	messageBusCounts    map[string]int64
	messageBusLatencies map[string][]time.Duration
	databaseQueryCounts map[string]int64
	databaseLatencies   map[string][]time.Duration
	directionsLatencies []time.Duration
	errorCounts         map[string]int64
	startTime           time.Time
	maxSamples          int
}

// Counter metrics
const (
	CounterHTTPRequests        = "http_requests_total"
	CounterHTTPRequestsSuccess = "http_requests_success_total"
	CounterHTTPRequestsError   = "http_requests_error_total"
	CounterScansAccepted       = "scans_accepted_total"
	CounterScansDuplicate      = "scans_duplicate_total"
	CounterScansRejected       = "scans_rejected_total"
	CounterDeliveriesRecorded  = "deliveries_recorded_total"
	CounterLocationPings       = "location_pings_total"
	CounterRoutePlans          = "route_plans_total"
	CounterRoutePlansDegraded  = "route_plans_degraded_total"
	CounterDirectionsFailures  = "directions_failures_total"
	CounterMessagesSent        = "messages_sent_total"
	CounterMessagesReceived    = "messages_received_total"
	CounterMessagesProcessed   = "messages_processed_total"
	CounterMessagesError       = "messages_error_total"
	CounterDBQueriesTotal      = "db_queries_total"
	CounterDBQueriesError      = "db_queries_error_total"
	CounterErrorsTotal         = "errors_total"
)

// Gauge metrics
const (
	GaugeSystemMemory = "system_memory_bytes"
	GaugeGoroutines   = "goroutines"
)

// Scan outcomes
const (
	ScanOutcomeAccepted  = "accepted"
	ScanOutcomeDuplicate = "duplicate"
	ScanOutcomeRejected  = "rejected"
)

// Database query types
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
	DBQueryTypeRaw    = "raw"
)

// Message bus operations
const (
	MessageBusOperationSend     = "send"
	MessageBusOperationReceive  = "receive"
	MessageBusOperationComplete = "complete"
	MessageBusOperationAbandon  = "abandon"
)

// Error types
const (
	ErrorTypeHTTP       = "http"
	ErrorTypeValidation = "validation"
	ErrorTypeDatabase   = "database"
	ErrorTypeMessageBus = "message_bus"
	ErrorTypeDirections = "directions"
	ErrorTypeSearch     = "search"
	ErrorTypeCache      = "cache"
	ErrorTypeInternal   = "internal"
)

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:            make(map[string]int64),
		gauges:              make(map[string]float64),
		requestCounts:       make(map[string]int64),
		requestLatencies:    make(map[string][]time.Duration),
		scanCounts:          make(map[string]int64),
		messageBusCounts:    make(map[string]int64),
		messageBusLatencies: make(map[string][]time.Duration),
		databaseQueryCounts: make(map[string]int64),
		databaseLatencies:   make(map[string][]time.Duration),
		errorCounts:         make(map[string]int64),
		startTime:           time.Now(),
		maxSamples:          1000,
	}
}

// appendSample keeps at most maxSamples, dropping the oldest
func (m *Collector) appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	if len(samples) >= m.maxSamples {
		samples = samples[1:]
	}
	return append(samples, d)
}

// IncrementCounter increments a counter by the given value
func (m *Collector) IncrementCounter(name string, value int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge to the given value
func (m *Collector) SetGauge(name string, value float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] = value
}

// Counter returns the current value of a counter
func (m *Collector) Counter(name string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters[name]
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterHTTPRequests]++
	m.requestCounts[path]++
	m.requestLatencies[path] = m.appendSample(m.requestLatencies[path], latency)

	// 4xx are client mistakes and do not count against health
	switch {
	case statusCode >= 500:
		m.counters[CounterHTTPRequestsError]++
		m.errorCounts[ErrorTypeHTTP]++
	default:
		m.counters[CounterHTTPRequestsSuccess]++
	}
}

// RecordScan records the outcome of a scan submission
func (m *Collector) RecordScan(kind string, outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.scanCounts[kind+":"+outcome]++
	switch outcome {
	case ScanOutcomeAccepted:
		m.counters[CounterScansAccepted]++
	case ScanOutcomeDuplicate:
		m.counters[CounterScansDuplicate]++
	case ScanOutcomeRejected:
		m.counters[CounterScansRejected]++
	}
}

// RecordRoutePlan records a completed route planning request
func (m *Collector) RecordRoutePlan(degraded bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterRoutePlans]++
	if degraded {
		m.counters[CounterRoutePlansDegraded]++
	}
}

// RecordDirectionsCall records the latency and outcome of a directions request
func (m *Collector) RecordDirectionsCall(success bool, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.directionsLatencies = m.appendSample(m.directionsLatencies, latency)
	if !success {
		m.counters[CounterDirectionsFailures]++
		m.errorCounts[ErrorTypeDirections]++
	}
}

// RecordMessageBusOperation records metrics for a message bus operation
func (m *Collector) RecordMessageBusOperation(operation string, success bool, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.messageBusCounts[operation]++
	switch operation {
	case MessageBusOperationSend:
		m.counters[CounterMessagesSent]++
	case MessageBusOperationReceive:
		m.counters[CounterMessagesReceived]++
	case MessageBusOperationComplete:
		m.counters[CounterMessagesProcessed]++
	}

	if !success {
		m.counters[CounterMessagesError]++
		m.errorCounts[ErrorTypeMessageBus]++
	}
	m.messageBusLatencies[operation] = m.appendSample(m.messageBusLatencies[operation], latency)
}

// RecordDatabaseQuery records metrics for a database query
func (m *Collector) RecordDatabaseQuery(queryType string, success bool, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.databaseQueryCounts[queryType]++
	m.counters[CounterDBQueriesTotal]++
	if !success {
		m.counters[CounterDBQueriesError]++
		m.errorCounts[ErrorTypeDatabase]++
	}
	m.databaseLatencies[queryType] = m.appendSample(m.databaseLatencies[queryType], latency)
}

// RecordError records an error of the given type
func (m *Collector) RecordError(errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.errorCounts[errorType]++
	m.counters[CounterErrorsTotal]++
}

func averageMillis(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return float64(sum.Milliseconds()) / float64(len(samples))
}

func averages(byKey map[string][]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(byKey))
	for k, samples := range byKey {
		if len(samples) > 0 {
			out[k] = averageMillis(samples)
		}
	}
	return out
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GetMetrics returns a snapshot of all collected metrics
func (m *Collector) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.startTime).Seconds(),
		"counters":                 copyCounts(m.counters),
		"gauges":                   gauges,
		"request_counts":           copyCounts(m.requestCounts),
		"request_latencies_ms":     averages(m.requestLatencies),
		"scan_counts":              copyCounts(m.scanCounts),
		"message_bus_counts":       copyCounts(m.messageBusCounts),
		"message_bus_latencies_ms": averages(m.messageBusLatencies),
		"database_query_counts":    copyCounts(m.databaseQueryCounts),
		"database_latencies_ms":    averages(m.databaseLatencies),
		"directions_latency_ms":    averageMillis(m.directionsLatencies),
		"error_counts":             copyCounts(m.errorCounts),
	}
}

// GetHealthStatus returns a simple health status based on metrics
func (m *Collector) GetHealthStatus() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	errorRate := 0.0
	totalRequests := m.counters[CounterHTTPRequests]
	if totalRequests > 0 {
		errorRate = float64(m.counters[CounterHTTPRequestsError]) / float64(totalRequests)
	}

	const errorRateThreshold = 0.05

	return map[string]interface{}{
		"status": map[string]interface{}{
			"healthy":        errorRate <= errorRateThreshold,
			"uptime_seconds": time.Since(m.startTime).Seconds(),
		},
		"metrics": map[string]interface{}{
			"total_requests":    totalRequests,
			"error_rate":        errorRate,
			"scans_accepted":    m.counters[CounterScansAccepted],
			"scans_rejected":    m.counters[CounterScansRejected],
			"route_plans":       m.counters[CounterRoutePlans],
			"messages_error":    m.counters[CounterMessagesError],
			"db_queries_failed": m.counters[CounterDBQueriesError],
		},
	}
}

var (
	globalCollector *Collector
	once            sync.Once
)

// GetCollector returns the process-wide collector
func GetCollector() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}
