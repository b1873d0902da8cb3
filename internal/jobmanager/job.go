package jobmanager

import (
	"sync"
	"time"
)

// JobRecord is the externally visible state of one submitted worker run.
// Optional fields are unset until the corresponding lifecycle transition:
// StartedAt and PID on entering running, CompletedAt on entering a terminal
// state, Error only when the status is failed.
type JobRecord struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
	PID         int       `json:"pid,omitempty"`
	Workdir     string    `json:"workdir,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// job pairs a JobRecord with the lock that serializes all mutations to it.
// The record is raced on by the spawn path, the process exit notification,
// cancellation, and reconciliation triggered by status queries; every one of
// them funnels through mu.
type job struct {
	mu     sync.Mutex
	record JobRecord

	taskPath   string
	configPath string
	logPath    string
}

// snapshot returns a copy of the record safe to hand out to callers.
func (j *job) snapshot() JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.record
}

// markRunning transitions the job to running. It's a no-op if the job has
// already reached a terminal state (e.g. cancelled between Start returning
// and this call).
func (j *job) markRunning(pid int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.record.Status.Terminal() {
		return
	}

	j.record.Status = StatusRunning
	j.record.StartedAt = time.Now()
	j.record.PID = pid
}

// finish moves the job into the terminal state s. Terminal states are
// absorbing: once set, later notifications (a Wait returning after a cancel,
// a reconcile racing an exit) leave the record unchanged.
func (j *job) finish(s Status, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.record.Status.Terminal() {
		return
	}

	j.record.Status = s
	j.record.CompletedAt = time.Now()

	if s == StatusFailed {
		j.record.Error = errMsg
	}
}
