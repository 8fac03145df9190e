package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linelot/linelot/internal/tracing"
)

func TestConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Brokers: []string{"localhost:9092"}}.Enabled(), "topic alone is not enough")
	assert.False(t, Config{Topic: "jobs"}.Enabled(), "brokers alone is not enough")
	assert.True(t, Config{Brokers: []string{"localhost:9092"}, Topic: "jobs"}.Enabled())
}

func TestNew_DisabledWhenNotConfigured(t *testing.T) {
	t.Parallel()

	pub, ok := New(Config{}, nil)
	assert.False(t, ok)
	assert.Nil(t, pub)
}

func TestToJobEvent(t *testing.T) {
	t.Parallel()

	job := &tracing.ImportJob{
		ID:         "job-1",
		TenantID:   "tenant-1",
		TableCode:  tracing.TableP2,
		Status:     tracing.JobReady,
		Progress:   100,
		ErrorCount: 3,
	}

	evt := toJobEvent(job)
	assert.Equal(t, "job-1", evt.JobID)
	assert.Equal(t, "tenant-1", evt.TenantID)
	assert.Equal(t, "P2", evt.TableCode)
	assert.Equal(t, "READY", evt.Status)
	assert.Equal(t, 100, evt.Progress)
	assert.Equal(t, 3, evt.ErrorCount)
	assert.NotEmpty(t, evt.Timestamp)
}
