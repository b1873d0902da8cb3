package jobmanager

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
)

// ValidationError is returned when a submission is missing a required part.
// No job record is created for an invalid submission.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid submission: " + e.Reason
}
