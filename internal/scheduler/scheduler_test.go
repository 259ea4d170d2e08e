package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// neverCron fires once a year so scheduled runs cannot interfere with tests.
const neverCron = "0 0 1 1 *"

func noopJob(_ context.Context) error { return nil }

func TestAddCronJob(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	require.NoError(t, s.AddCronJob("refresh", "Refresh", neverCron, noopJob))

	err = s.AddCronJob("refresh", "Refresh again", neverCron, noopJob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, s.AddCronJob("broken", "Broken", "not-a-cron", noopJob))

	jobs := s.GetJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "refresh", jobs[0].ID)
	assert.Equal(t, JobStatusScheduled, jobs[0].Status)
}

func TestWrappedJobTracksRuns(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	var jobErr error
	job := func(_ context.Context) error { return jobErr }
	require.NoError(t, s.AddCronJob("flaky", "Flaky job", neverCron, job))

	run := s.wrapJobFunc("flaky", job)

	run()
	info := s.GetJobs()[0]
	assert.Equal(t, JobStatusCompleted, info.Status)
	assert.Equal(t, 1, info.RunCount)
	assert.Zero(t, info.ErrorCount)
	assert.False(t, info.LastRun.IsZero())

	jobErr = errors.New("backend unreachable")
	run()
	info = s.GetJobs()[0]
	assert.Equal(t, JobStatusFailed, info.Status)
	assert.Equal(t, 2, info.RunCount)
	assert.Equal(t, 1, info.ErrorCount)
	assert.Equal(t, "backend unreachable", info.LastError)

	// A successful run clears the last error.
	jobErr = nil
	run()
	info = s.GetJobs()[0]
	assert.Equal(t, JobStatusCompleted, info.Status)
	assert.Empty(t, info.LastError)
}

func TestRunJobNow(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, s.AddCronJob("once", "Run once", neverCron, func(_ context.Context) error {
		close(done)
		return nil
	}))

	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.RunJobNow("once"))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered job never ran")
	}

	assert.ErrorIs(t, s.RunJobNow("missing"), ErrJobNotFound)
}
