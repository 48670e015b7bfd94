package webhook

import (
	"fmt"
	"sync"
	"time"

	"github.com/sendloop/wa-platform/internal/metrics"
)

// Monitor tracks webhook throughput and failures for observability. It is
// not on the critical path: ingestion never consults it, only feeds it.
type Monitor struct {
	staleAfter time.Duration

	mu             sync.RWMutex
	startedAt      time.Time
	lastReceivedAt time.Time
	lastError      string
	lastErrorAt    time.Time
	received       int64
	errors         int64
}

func NewMonitor(staleAfter time.Duration) *Monitor {
	return &Monitor{
		staleAfter: staleAfter,
		startedAt:  time.Now(),
	}
}

// RecordDelivery notes one accepted webhook POST.
func (m *Monitor) RecordDelivery() {
	metrics.WebhookReceived.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
	m.lastReceivedAt = time.Now()
}

// RecordEvent notes the outcome of one processed sub-event.
func (m *Monitor) RecordEvent(kind, result string) {
	metrics.WebhookEvents.WithLabelValues(kind, result).Inc()
}

// RecordError captures a processing failure. The HTTP 200 has already been
// sent by the time processing fails, so this is the only place the failure
// becomes visible.
func (m *Monitor) RecordError(err error) {
	metrics.WebhookErrors.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
	m.lastError = err.Error()
	m.lastErrorAt = time.Now()
}

// Status is the monitor snapshot exposed on the health endpoint.
type Status struct {
	Healthy        bool      `json:"healthy"`
	Received       int64     `json:"received"`
	Errors         int64     `json:"errors"`
	LastReceivedAt time.Time `json:"last_received_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

// Snapshot reports health: the webhook subsystem is stale when nothing has
// arrived within the configured window.
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Healthy:        true,
		Received:       m.received,
		Errors:         m.errors,
		LastReceivedAt: m.lastReceivedAt,
		LastError:      m.lastError,
	}

	reference := m.lastReceivedAt
	if reference.IsZero() {
		reference = m.startedAt
	}
	if age := time.Since(reference); age > m.staleAfter {
		status.Healthy = false
		status.Detail = fmt.Sprintf("no webhook received in %s", age.Round(time.Minute))
	}

	return status
}
