package ledger

import (
	"fmt"
	"time"
)

type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist history after %s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DurabilityStatus tells whether the stored ledger currently matches memory.
// OK turns false on a failed write and back to true on the next good one.
type DurabilityStatus struct {
	OK            bool      `json:"ok"`
	LastError     string    `json:"last_error,omitempty"`
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`
	LastSuccessAt time.Time `json:"last_success_at,omitzero"`
	Failures      int       `json:"failures"`
}

func (s *DurabilityStatus) recordFailure(err error, at time.Time) {
	s.OK = false
	s.LastError = err.Error()
	s.LastFailureAt = at.UTC()
	s.Failures++
}

func (s *DurabilityStatus) recordSuccess(at time.Time) {
	s.OK = true
	s.LastSuccessAt = at.UTC()
}

func (l *Ledger) Status() DurabilityStatus {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.status
}
