package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/repository"
	"MarketBrief/pkg/cache"
)

type fakeRunner struct {
	calls   int32
	release chan struct{}
	started chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, trigger string) *models.PipelineOutcome {
	n := atomic.AddInt32(&r.calls, 1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	now := time.Now()
	return &models.PipelineOutcome{
		RunID:      "run-" + string(rune('0'+n)),
		Trigger:    trigger,
		StartedAt:  now,
		FinishedAt: now,
		Headlines:  []models.Headline{},
		Analysis:   &models.AnalysisResult{ModelUsed: "m1", Text: "report text"},
	}
}

func (r *fakeRunner) Calls() int { return int(atomic.LoadInt32(&r.calls)) }

type capturePublisher struct {
	mu   sync.Mutex
	runs []string
}

func (p *capturePublisher) PublishOutcome(_ context.Context, o *models.PipelineOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, o.RunID)
	return nil
}

func newTestService(t *testing.T, runner Runner, pub *capturePublisher) *ReportService {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	store := repository.NewCacheReportStore(mc, time.Hour)
	return NewReportService(runner, store, repository.NoopRunHistory{}, pub, time.Minute, nil)
}

func TestReportServiceTriggerPersists(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(t, &fakeRunner{}, pub)
	ctx := context.Background()

	_, err := svc.Latest(ctx)
	require.ErrorIs(t, err, models.ErrNoReport)

	o, err := svc.Trigger(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, "run-1", o.RunID)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, []string{"run-1"}, pub.runs)

	runs, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReportServiceRejectsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	svc := newTestService(t, runner, &capturePublisher{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Trigger(context.Background(), "manual")
		done <- err
	}()
	<-runner.started

	_, err := svc.Trigger(context.Background(), "schedule")
	require.ErrorIs(t, err, models.ErrRunInProgress)
	assert.True(t, IsBusy(err))

	close(runner.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, runner.Calls())

	// The lock is released once the first run finishes.
	runner.started = nil
	_, err = svc.Trigger(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, runner.Calls())
}

func TestReportServiceSurvivesCancelledContext(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, &capturePublisher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := svc.Trigger(ctx, "manual")
	require.NoError(t, err)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, o.RunID, latest.RunID)
}

func TestSchedulerRunsOnStartAndStops(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner, &capturePublisher{})

	s := NewScheduler(svc, time.Hour, true, nil)
	s.Start(context.Background())

	require.Eventually(t, func() bool { return runner.Calls() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, 1, runner.Calls())
}

func TestSchedulerTicks(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner, &capturePublisher{})

	s := NewScheduler(svc, 10*time.Millisecond, false, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
}
