package iot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"liyu1981.xyz/home-state-monitor/pkg/common"
)

// Job is one periodic unit of work. A failing run is logged and the job keeps
// its schedule.
type Job struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Run        func(ctx context.Context) error
}

type Scheduler struct {
	Jobs []Job
}

// Run starts one ticker per job and blocks until ctx is cancelled. A run in
// progress when ctx is cancelled is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryScheduler),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.Jobs {
		if job.Interval <= 0 || job.Run == nil {
			logger.Info("Job disabled", zap.String("job", job.Name))
			continue
		}
		g.Go(func() error {
			runJob(gctx, job)
			return nil
		})
	}

	logger.Info("Scheduler started", zap.Int("jobs", len(s.Jobs)))
	err := g.Wait()
	logger.Info("Scheduler stopped")
	return err
}

func runJob(ctx context.Context, job Job) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryScheduler),
		zap.String("job", job.Name),
	)

	unit := context.WithoutCancel(ctx)
	run := func() {
		started := time.Now()
		if err := job.Run(unit); err != nil {
			logger.Warn("Job run failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
			return
		}
		logger.Debug("Job run completed", zap.Duration("elapsed", time.Since(started)))
	}

	if job.RunAtStart {
		run()
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
