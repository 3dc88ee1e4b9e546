package application

import (
	"sync"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

// DomainStatus captures the most recent outcome of a domain's poll cycles.
type DomainStatus struct {
	LastSuccess  time.Time
	LastDispatch time.Time
	LastError    string
	LastErrorAt  time.Time
}

// HealthSnapshot is a point-in-time view served by the health endpoint.
type HealthSnapshot struct {
	StartedAt time.Time
	Domains   map[model.Domain]DomainStatus
}

// HealthService aggregates per-domain poll outcomes for the health endpoint.
// The PollService reports into it at each cycle boundary.
type HealthService struct {
	mu        sync.RWMutex
	startedAt time.Time
	domains   map[model.Domain]*DomainStatus
}

// NewHealthService creates a HealthService with the start time set to now.
func NewHealthService() *HealthService {
	return &HealthService{
		startedAt: time.Now(),
		domains:   make(map[model.Domain]*DomainStatus),
	}
}

// RecordSuccess marks a completed cycle for the domain. dispatched indicates
// whether a webhook event was delivered during the cycle.
func (h *HealthService) RecordSuccess(domain model.Domain, dispatched bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.status(domain)
	st.LastSuccess = time.Now()
	if dispatched {
		st.LastDispatch = st.LastSuccess
	}
}

// RecordFailure marks a failed cycle for the domain.
func (h *HealthService) RecordFailure(domain model.Domain, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.status(domain)
	st.LastError = err.Error()
	st.LastErrorAt = time.Now()
}

// Snapshot returns a copy of the current health state.
func (h *HealthService) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	domains := make(map[model.Domain]DomainStatus, len(h.domains))
	for d, st := range h.domains {
		domains[d] = *st
	}

	return HealthSnapshot{
		StartedAt: h.startedAt,
		Domains:   domains,
	}
}

// status returns the mutable status record for a domain, creating it on
// first use. Callers must hold h.mu.
func (h *HealthService) status(domain model.Domain) *DomainStatus {
	st, ok := h.domains[domain]
	if !ok {
		st = &DomainStatus{}
		h.domains[domain] = st
	}
	return st
}
