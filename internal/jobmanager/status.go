package jobmanager

// Status is the lifecycle state of a Job.
type Status string

const (
	// StatusPending indicates the job record has been created but the worker
	// process has not started yet.
	StatusPending Status = "pending"

	// StatusRunning indicates the worker process has started and has not
	// exited.
	StatusRunning Status = "running"

	// StatusCompleted indicates the worker process exited successfully, or
	// was found to no longer exist during reconciliation.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the worker process could not be started or
	// exited unsuccessfully.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the worker process was terminated on request.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}

	return false
}
