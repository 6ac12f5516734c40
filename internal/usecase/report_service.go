package usecase

import (
	"context"
	"errors"
	"time"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// persistTimeout bounds the post-run writes to cache, history and stream.
const persistTimeout = 10 * time.Second

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trigger string) *models.PipelineOutcome
}

// ReportService is the single entry point shared by the HTTP trigger, the scheduler and the CLI.
// It serialises runs through the store's lock and persists every outcome.
type ReportService struct {
	runner    Runner
	store     drepo.ReportStore
	history   drepo.RunHistory
	publisher drepo.OutcomePublisher
	lockTTL   time.Duration
	logger    *applogger.Logger
}

// NewReportService creates a new ReportService instance.
func NewReportService(runner Runner, store drepo.ReportStore, history drepo.RunHistory, publisher drepo.OutcomePublisher, lockTTL time.Duration, logger *applogger.Logger) *ReportService {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ReportService{
		runner:    runner,
		store:     store,
		history:   history,
		publisher: publisher,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Trigger runs the pipeline unless another run holds the lock, in which case it returns models.ErrRunInProgress.
// The run is detached from ctx cancellation so a dropped client does not abort it halfway.
func (s *ReportService) Trigger(ctx context.Context, trigger string) (*models.PipelineOutcome, error) {
	ctx = context.WithoutCancel(ctx)

	ok, err := s.store.AcquireRunLock(ctx, s.lockTTL)
	switch {
	case err != nil:
		s.logger.Warn("run lock unavailable, running unguarded", applogger.Error(err))
	case !ok:
		return nil, models.ErrRunInProgress
	default:
		defer func() {
			if err := s.store.ReleaseRunLock(ctx); err != nil {
				s.logger.Warn("run lock release failed", applogger.Error(err))
			}
		}()
	}

	o := s.runner.Run(ctx, trigger)
	s.persist(ctx, o)
	return o, nil
}

func (s *ReportService) persist(ctx context.Context, o *models.PipelineOutcome) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	log := s.logger.With(applogger.String("run_id", o.RunID))

	if err := s.store.SaveLatest(ctx, o); err != nil {
		log.Warn("save latest report failed", applogger.Error(err))
	}
	if err := s.history.Record(ctx, o.Record()); err != nil {
		log.Warn("record run history failed", applogger.Error(err))
	}
	if err := s.publisher.PublishOutcome(ctx, o); err != nil {
		log.Warn("publish outcome failed", applogger.Error(err))
	}
}

// Latest returns the most recent outcome or models.ErrNoReport.
func (s *ReportService) Latest(ctx context.Context) (*models.PipelineOutcome, error) {
	return s.store.Latest(ctx)
}

// History returns up to limit archived runs, newest first.
func (s *ReportService) History(ctx context.Context, limit int) ([]models.RunRecord, error) {
	return s.history.Recent(ctx, limit)
}

// IsBusy reports whether err means another run holds the lock.
func IsBusy(err error) bool {
	return errors.Is(err, models.ErrRunInProgress)
}
