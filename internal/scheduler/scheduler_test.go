package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.AddCronJob("cleanup", "Cleanup", "0 3 * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	info, ok := s.Job("cleanup")
	require.True(t, ok)
	assert.Equal(t, JobStatusScheduled, info.Status)
	assert.False(t, info.NextRun.IsZero())

	require.NoError(t, s.RunNow("cleanup"))
	assert.Eventually(t, func() bool {
		info, _ := s.Job("cleanup")
		return info.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	info, _ = s.Job("cleanup")
	assert.Equal(t, 1, info.RunCount)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_FailedJob(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddCronJob("broken", "Broken", "0 3 * * *", func(context.Context) error {
		return errors.New("boom")
	}))
	s.Start()

	require.NoError(t, s.RunNow("broken"))
	assert.Eventually(t, func() bool {
		info, _ := s.Job("broken")
		return info.Status == JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	info, _ := s.Job("broken")
	assert.Equal(t, 1, info.ErrorCount)
	assert.Equal(t, "boom", info.LastError)
}

func TestScheduler_Errors(t *testing.T) {
	s := newTestScheduler(t)

	noop := func(context.Context) error { return nil }
	assert.Error(t, s.AddCronJob("bad", "Bad", "not a cron", noop))
	require.NoError(t, s.AddCronJob("a", "A", "0 * * * *", noop))
	assert.Error(t, s.AddCronJob("a", "A", "0 * * * *", noop))
	require.NoError(t, s.AddCronJob("b", "B", "0 * * * *", noop))

	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotFound)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}
