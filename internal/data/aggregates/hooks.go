package aggregates

import (
	"time"

	"github.com/yungbote/storykeep-backend/internal/observability"
)

// Hooks receives one ObserveOperation per write attempt, plus a conflict or
// retry tick when the attempt failed transiently.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

// metricsHooks feeds the ledger operation histogram and the conflict/retry
// counters exposed on /metrics.
type metricsHooks struct {
	m *observability.Metrics
}

func NewObservabilityHooks(m *observability.Metrics) Hooks {
	if m == nil {
		return noopHooks{}
	}
	return metricsHooks{m: m}
}

func (h metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.m.ObserveLedger(name, status, dur)
}

func (h metricsHooks) IncConflict(name string) { h.m.IncAggregateConflict(name) }

func (h metricsHooks) IncRetry(name string) { h.m.IncAggregateRetry(name) }
