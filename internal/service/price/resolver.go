package price

import (
	"context"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// Resolver asks the primary provider, then the backup, once each.
type Resolver struct {
	primary repository.PriceProvider
	backup  repository.PriceProvider
	timeout time.Duration
	symbol  string
	metrics repository.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

type Option func(*Resolver)

func WithBackup(p repository.PriceProvider) Option {
	return func(r *Resolver) { r.backup = p }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithMetrics(m repository.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a resolver; symbol labels the degraded snapshot.
func NewResolver(primary repository.PriceProvider, symbol string, opts ...Option) *Resolver {
	r := &Resolver{
		primary: primary,
		symbol:  symbol,
		timeout: 10 * time.Second,
		logger:  applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never returns an error. When both providers fail the snapshot is tagged Unavailable.
func (r *Resolver) Resolve(ctx context.Context) models.MarketSnapshot {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordLatency("price_resolve", time.Since(start))
		}
	}()

	if snap, ok := r.try(ctx, r.primary, models.PrimaryProvider); ok {
		return snap
	}
	if r.backup != nil {
		if snap, ok := r.try(ctx, r.backup, models.BackupProvider); ok {
			return snap
		}
	}

	r.logger.Warn("price unavailable from every provider", applogger.Error(models.ErrProviderUnavailable))
	if r.metrics != nil {
		r.metrics.RecordPriceSource(string(models.Unavailable))
	}
	return models.UnavailableSnapshot(r.symbol, r.now())
}

func (r *Resolver) try(ctx context.Context, p repository.PriceProvider, source models.PriceSource) (models.MarketSnapshot, bool) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q, err := p.Quote(callCtx)
	if err != nil {
		r.logger.Warn("price provider failed",
			applogger.String("provider", p.Name()),
			applogger.String("source", string(source)),
			applogger.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordProviderFailure(p.Name())
		}
		return models.MarketSnapshot{}, false
	}

	snap := models.SnapshotFromQuote(q, source, p.Name(), r.now())
	if r.metrics != nil {
		r.metrics.RecordPriceSource(string(source))
		if v, ok := snap.Price.Float64(); ok {
			r.metrics.RecordLastPrice(snap.Symbol, v)
		}
	}
	r.logger.Debug("price resolved",
		applogger.String("provider", p.Name()),
		applogger.String("price", snap.Price.String()),
	)
	return snap, true
}
