package usecase

import (
	"context"
	"sync"
	"time"

	applogger "MarketBrief/pkg/logger"
)

const scheduleTrigger = "schedule"

// Scheduler triggers a run on a fixed interval.
type Scheduler struct {
	svc        *ReportService
	interval   time.Duration
	runOnStart bool
	logger     *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(svc *ReportService, interval time.Duration, runOnStart bool, logger *applogger.Logger) *Scheduler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Scheduler{svc: svc, interval: interval, runOnStart: runOnStart, logger: logger}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started",
		applogger.Duration("interval_ms", s.interval),
		applogger.Bool("run_on_start", s.runOnStart),
	)
}

// Stop cancels the ticker and waits for an in-flight tick to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	o, err := s.svc.Trigger(ctx, scheduleTrigger)
	if err != nil {
		if IsBusy(err) {
			s.logger.Info("scheduled run skipped, another run in progress")
			return
		}
		s.logger.Error("scheduled run error", applogger.Error(err))
		return
	}
	s.logger.Info("scheduled run done", applogger.String("run_id", o.RunID), applogger.String("status", o.Status()))
}
