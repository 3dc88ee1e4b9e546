// Package application contains use-case orchestration services.
package application

import (
	"sync"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

// ChangeDetector tracks the last committed payload fingerprint per domain.
// Detection and commit are deliberately separate operations: HasChanged is a
// pure predicate, and only Commit (called after a successful webhook
// dispatch) advances the stored fingerprint. A failed dispatch therefore
// leaves the old fingerprint in place and the change is re-detected on the
// next cycle.
type ChangeDetector struct {
	mu           sync.Mutex
	fingerprints map[model.Domain]model.Fingerprint
}

// NewChangeDetector creates a detector with no committed fingerprints.
// Every domain's first fetch counts as changed.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{
		fingerprints: make(map[model.Domain]model.Fingerprint),
	}
}

// HasChanged reports whether payload differs from the last committed payload
// for the domain. It never mutates detector state.
func (d *ChangeDetector) HasChanged(domain model.Domain, payload []byte) bool {
	fp := model.ComputeFingerprint(payload)

	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.fingerprints[domain]
	return !ok || last != fp
}

// Commit records payload's fingerprint as the last delivered state for the
// domain. Call only after the corresponding webhook dispatch succeeded.
func (d *ChangeDetector) Commit(domain model.Domain, payload []byte) {
	fp := model.ComputeFingerprint(payload)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.fingerprints[domain] = fp
}
