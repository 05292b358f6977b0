package iot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/home-state-monitor/pkg/common"
)

func TestSchedulerRunsJobsIndependently(t *testing.T) {
	common.SetTestLoggerNop()

	var fast, failing, slowStarted atomic.Int32
	release := make(chan struct{})

	s := &Scheduler{Jobs: []Job{
		{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("vendor unavailable")
		}},
		{Name: "stuck", Interval: time.Millisecond, RunAtStart: true, Run: func(context.Context) error {
			if slowStarted.Add(1) == 1 {
				<-release
			}
			return nil
		}},
		{Name: "disabled", Interval: 0, Run: func(context.Context) error {
			t.Error("disabled job must not run")
			return nil
		}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return fast.Load() >= 3 && failing.Load() >= 3
	}, time.Second, 5*time.Millisecond, "a stuck job must not stall the others")

	cancel()
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerFinishesRunInProgress(t *testing.T) {
	common.SetTestLoggerNop()

	started := make(chan struct{})
	var finished atomic.Bool
	var sawCancel atomic.Bool

	s := &Scheduler{Jobs: []Job{{
		Name:       "report",
		Interval:   time.Hour,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			sawCancel.Store(ctx.Err() != nil)
			finished.Store(true)
			return nil
		},
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load())
	assert.False(t, sawCancel.Load())
}
