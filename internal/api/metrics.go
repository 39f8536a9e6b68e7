package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime       time.Time
	requests        atomic.Int64
	serverErrors    atomic.Int64
	clientErrors    atomic.Int64
	signups         atomic.Int64
	uploads         atomic.Int64
	classifications atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Requests        int64   `json:"requests"`
	ServerErrors    int64   `json:"server_errors"`
	ClientErrors    int64   `json:"client_errors"`
	Signups         int64   `json:"signups"`
	FilesUploaded   int64   `json:"files_uploaded"`
	Classifications int64   `json:"classifications"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordSignup increments the created accounts counter.
func (m *Metrics) RecordSignup() {
	m.signups.Add(1)
}

// RecordUploads adds n to the stored files counter.
func (m *Metrics) RecordUploads(n int64) {
	m.uploads.Add(n)
}

// RecordClassification increments the soil classification counter.
func (m *Metrics) RecordClassification() {
	m.classifications.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		Requests:        m.requests.Load(),
		ServerErrors:    m.serverErrors.Load(),
		ClientErrors:    m.clientErrors.Load(),
		Signups:         m.signups.Load(),
		FilesUploaded:   m.uploads.Load(),
		Classifications: m.classifications.Load(),
	}
}
