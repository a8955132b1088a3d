package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/storykeep-backend/internal/data/aggregates"
)

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

// HooksRecorder keeps every aggregate hook call so tests can assert on
// ledger outcomes per operation.
type HooksRecorder struct {
	mu        sync.Mutex
	ops       []OperationEvent
	conflicts map[string]int
	retries   map[string]int
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conflicts == nil {
		h.conflicts = map[string]int{}
	}
	h.conflicts[name]++
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retries == nil {
		h.retries = map[string]int{}
	}
	h.retries[name]++
}

// Ops returns a copy of the recorded operations in call order.
func (h *HooksRecorder) Ops() []OperationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]OperationEvent(nil), h.ops...)
}

// Count reports how many attempts of op finished with status.
func (h *HooksRecorder) Count(op, status string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ev := range h.ops {
		if ev.Name == op && ev.Status == status {
			n++
		}
	}
	return n
}

func (h *HooksRecorder) Conflicts(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conflicts[op]
}

func (h *HooksRecorder) Retries(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retries[op]
}
