package tracing

import "errors"

// Sentinel errors for Import job state transitions, mirrored from the
// teacher's OpenLineage event-transition sentinels (ErrInvalidTransition,
// ErrTerminalStateImmutable, ...), re-targeted to job status values.
var (
	ErrInvalidTransition       = errors.New("invalid job state transition")
	ErrTerminalStateImmutable  = errors.New("job is in a terminal state and cannot transition")
	ErrCommitNotReady          = errors.New("job is not in READY state")
	ErrCancelPastReady         = errors.New("job cannot be cancelled past READY")
	ErrCommitRefusedErrorCount = errors.New("commit refused: job has invalid rows")
)

// validTransitions enumerates every allowed (from -> to) edge, including
// CANCELLED from each of the four pre-COMMITTING states; ValidateCancel
// checks that same set of states directly.
var validTransitions = map[JobStatus][]JobStatus{
	JobUploaded:   {JobParsing, JobFailed, JobCancelled},
	JobParsing:    {JobValidating, JobFailed, JobCancelled},
	JobValidating: {JobReady, JobFailed, JobCancelled},
	JobReady:      {JobCommitting, JobFailed, JobCancelled},
	JobCommitting: {JobCompleted, JobFailed},
}

// ValidateStateTransition checks whether from -> to is an allowed edge in
// the Import job state machine: UPLOADED -> PARSING -> VALIDATING ->
// (FAILED | READY) -> COMMITTING -> (COMPLETED | FAILED), with CANCELLED
// reachable from any pre-COMMITTING state.
func ValidateStateTransition(from, to JobStatus) error {
	if from.IsTerminal() {
		return ErrTerminalStateImmutable
	}

	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}

	return ErrInvalidTransition
}

// ValidateCancel checks that a job in status may be cancelled: allowed
// for UPLOADED, PARSING, VALIDATING, READY; rejected once COMMITTING has
// started or the job already reached a terminal state.
func ValidateCancel(status JobStatus) error {
	switch status {
	case JobUploaded, JobParsing, JobValidating, JobReady:
		return nil
	default:
		return ErrCancelPastReady
	}
}

// ValidateCommit checks that a job may begin the COMMITTING transition:
// it must be READY and carry zero invalid staging rows (policy: refuse if
// any row invalid).
func ValidateCommit(job *ImportJob) error {
	if job.Status != JobReady {
		return ErrCommitNotReady
	}

	if job.ErrorCount > 0 {
		return ErrCommitRefusedErrorCount
	}

	return nil
}

// ProgressForStatus returns the canonical progress percentage a job
// reaches on successfully completing a stage, per spec §4.F's stage
// progress ranges (PARSING ends at 40, VALIDATING at 90, READY at 100).
// FAILED/CANCELLED jobs keep whatever progress they last reported; this
// function is only consulted on a successful stage transition.
func ProgressForStatus(status JobStatus) int {
	switch status {
	case JobUploaded:
		return 0
	case JobParsing:
		return 40
	case JobValidating:
		return 90
	case JobReady, JobCommitting, JobCompleted:
		return 100
	default:
		return 0
	}
}
