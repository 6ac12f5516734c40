package repository

import (
	"context"
	"time"

	"MarketBrief/internal/domain/models"
)

// PriceProvider is one upstream quote source.
type PriceProvider interface {
	Name() string
	Quote(ctx context.Context) (*models.Quote, error)
}

// FeedFetcher downloads one feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ModelClient talks to the generative model service.
type ModelClient interface {
	ListModels(ctx context.Context) ([]models.ModelCandidate, error)
	Generate(ctx context.Context, model, prompt string) models.Attempt
	HasCredential() bool
}

// Notifier delivers text to the report channel.
type Notifier interface {
	Configured() bool
	Send(ctx context.Context, text string) error
}

// ReportStore keeps the latest outcome and the cross-trigger run lock.
type ReportStore interface {
	SaveLatest(ctx context.Context, o *models.PipelineOutcome) error
	Latest(ctx context.Context) (*models.PipelineOutcome, error)
	AcquireRunLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context) error
}

// RunHistory archives one record per run.
type RunHistory interface {
	Record(ctx context.Context, r models.RunRecord) error
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
}

// OutcomePublisher streams finished outcomes to downstream consumers.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, o *models.PipelineOutcome) error
}

type Metrics interface {
	RecordPriceSource(source string)
	RecordProviderFailure(provider string)
	RecordFeedResult(host string, ok bool)
	RecordHeadlines(n int)
	RecordModelAttempt(model, outcome string)
	RecordDelivery(kind string, ok bool)
	RecordRun(status, stage string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, d time.Duration)
}
