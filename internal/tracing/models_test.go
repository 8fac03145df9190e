package tracing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestP1Record_Validate(t *testing.T) {
	t.Parallel()

	p := &P1Record{TenantID: "t1", LotNoRaw: "2507173_02", ProductionDate: time.Now()}
	require.NoError(t, p.Validate())

	p.TenantID = ""
	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTenantIDEmpty)
}

func TestP2Item_Validate(t *testing.T) {
	t.Parallel()

	i := &P2Item{TenantID: "t1", WinderNumber: 21}
	err := i.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWinderNumberRange)

	i.WinderNumber = 5
	require.NoError(t, i.Validate())
}

func TestP3Item_Validate(t *testing.T) {
	t.Parallel()

	i := &P3Item{TenantID: "t1", RowNo: 0}
	err := i.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRowNoInvalid)

	i.RowNo = 1
	require.NoError(t, i.Validate())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.True(t, JobCancelled.IsTerminal())
	assert.False(t, JobReady.IsTerminal())
}
