package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStateTransition_HappyPath(t *testing.T) {
	t.Parallel()

	steps := []struct{ from, to JobStatus }{
		{JobUploaded, JobParsing},
		{JobParsing, JobValidating},
		{JobValidating, JobReady},
		{JobReady, JobCommitting},
		{JobCommitting, JobCompleted},
	}

	for _, s := range steps {
		assert.NoError(t, ValidateStateTransition(s.from, s.to), "%s -> %s", s.from, s.to)
	}
}

func TestValidateStateTransition_RejectsBackward(t *testing.T) {
	t.Parallel()

	err := ValidateStateTransition(JobValidating, JobParsing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidateStateTransition_TerminalImmutable(t *testing.T) {
	t.Parallel()

	err := ValidateStateTransition(JobCompleted, JobFailed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminalStateImmutable)
}

func TestValidateCancel(t *testing.T) {
	t.Parallel()

	for _, s := range []JobStatus{JobUploaded, JobParsing, JobValidating, JobReady} {
		assert.NoError(t, ValidateCancel(s), "%s should be cancellable", s)
	}

	err := ValidateCancel(JobCommitting)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelPastReady)
}

func TestValidateCommit(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateCommit(&ImportJob{Status: JobReady, ErrorCount: 0}))

	err := ValidateCommit(&ImportJob{Status: JobReady, ErrorCount: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitRefusedErrorCount)

	err = ValidateCommit(&ImportJob{Status: JobValidating})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitNotReady)
}
