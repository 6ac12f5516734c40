package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	dsvc "MarketBrief/internal/domain/service"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/metrics"
	"MarketBrief/pkg/util"
)

// diagnosticTimeout bounds the failure notice, which is sent even after the run deadline passed.
const diagnosticTimeout = 10 * time.Second

// PipelineConfig is the per-run configuration injected at construction.
type PipelineConfig struct {
	FeedURLs         []string
	PerFeedLimit     int
	TotalLimit       int
	RunTimeout       time.Duration
	DeliveryRequired bool
	Location         *time.Location
	Language         string
}

// Pipeline gathers price and headlines, asks the model for a report and delivers it.
type Pipeline struct {
	resolver dsvc.PriceResolver
	feeds    dsvc.FeedAggregator
	invoker  dsvc.ModelInvoker
	prompts  dsvc.PromptBuilder
	notifier drepo.Notifier
	metrics  drepo.Metrics
	logger   *applogger.Logger
	cfg      PipelineConfig

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(
	resolver dsvc.PriceResolver,
	feeds dsvc.FeedAggregator,
	invoker dsvc.ModelInvoker,
	prompts dsvc.PromptBuilder,
	notifier drepo.Notifier,
	m drepo.Metrics,
	logger *applogger.Logger,
	cfg PipelineConfig,
) *Pipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Pipeline{
		resolver: resolver,
		feeds:    feeds,
		invoker:  invoker,
		prompts:  prompts,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run executes one attempt of the whole pipeline. It always returns an outcome.
func (p *Pipeline) Run(ctx context.Context, trigger string) *models.PipelineOutcome {
	o := &models.PipelineOutcome{
		RunID:     p.newID(),
		Trigger:   trigger,
		StartedAt: p.now(),
		Headlines: []models.Headline{},
	}
	log := p.logger.With(applogger.String("run_id", o.RunID), applogger.String("trigger", trigger))
	log.Info("pipeline run started")

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	o.Snapshot, o.Headlines = p.gather(ctx)
	if o.Headlines == nil {
		o.Headlines = []models.Headline{}
	}
	if price, ok := o.Snapshot.Price.Float64(); ok && o.Snapshot.Available() {
		p.metrics.RecordLastPrice(o.Snapshot.Symbol, price)
	}
	log.Info("market data gathered",
		applogger.String("price_source", string(o.Snapshot.Source)),
		applogger.String("price", o.Snapshot.PriceLabel()),
		applogger.Int("headlines", len(o.Headlines)),
	)

	result, err := p.analyse(ctx, o)
	if err != nil {
		p.fail(ctx, log, o, models.StageModel, err)
		return p.finish(log, o)
	}
	o.Analysis = &result

	p.deliver(ctx, log, o)
	return p.finish(log, o)
}

// gather runs the resolver and the aggregator concurrently and waits for both.
func (p *Pipeline) gather(ctx context.Context) (models.MarketSnapshot, []models.Headline) {
	var (
		wg        sync.WaitGroup
		snapshot  models.MarketSnapshot
		headlines []models.Headline
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		snapshot = p.resolver.Resolve(ctx)
	}()
	go func() {
		defer wg.Done()
		headlines = p.feeds.Aggregate(ctx, p.cfg.FeedURLs, p.cfg.PerFeedLimit, p.cfg.TotalLimit)
	}()
	wg.Wait()

	return snapshot, headlines
}

func (p *Pipeline) analyse(ctx context.Context, o *models.PipelineOutcome) (models.AnalysisResult, error) {
	candidates, err := p.invoker.Candidates(ctx)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	date, clock := util.ReportStamp(o.StartedAt, p.cfg.Location)
	prompt, err := p.prompts.Build(models.PromptData{
		Date:      date,
		Time:      clock,
		Language:  p.cfg.Language,
		Snapshot:  o.Snapshot,
		Headlines: o.Headlines,
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	start := time.Now()
	result, err := p.invoker.Invoke(ctx, prompt, candidates)
	p.metrics.RecordLatency("model_invoke", time.Since(start))
	return result, err
}

func (p *Pipeline) deliver(ctx context.Context, log *applogger.Logger, o *models.PipelineOutcome) {
	if !p.notifier.Configured() {
		log.Warn("notifier not configured, report not delivered")
		o.DeliveryError = models.ErrMissingCredential.Error()
		if p.cfg.DeliveryRequired {
			o.Fail(models.StageDelivery, "notifier not configured")
		}
		return
	}

	if err := p.notifier.Send(ctx, o.Analysis.Text); err != nil {
		p.metrics.RecordDelivery("report", false)
		log.Error("report delivery failed", applogger.Error(err))
		o.DeliveryError = err.Error()
		if p.cfg.DeliveryRequired {
			o.Fail(models.StageDelivery, err.Error())
		}
		return
	}

	p.metrics.RecordDelivery("report", true)
	o.Delivered = true
}

// fail records the failure and sends at most one diagnostic message.
func (p *Pipeline) fail(ctx context.Context, log *applogger.Logger, o *models.PipelineOutcome, stage models.Stage, err error) {
	o.Fail(stage, err.Error())
	log.Error("pipeline run failed", applogger.String("stage", string(stage)), applogger.Error(err))

	if !p.notifier.Configured() {
		return
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticTimeout)
	defer cancel()

	if derr := p.notifier.Send(dctx, DiagnosticMessage(err.Error())); derr != nil {
		p.metrics.RecordDelivery("diagnostic", false)
		log.Warn("diagnostic delivery failed", applogger.Error(derr))
		o.DeliveryError = derr.Error()
		return
	}
	p.metrics.RecordDelivery("diagnostic", true)
}

func (p *Pipeline) finish(log *applogger.Logger, o *models.PipelineOutcome) *models.PipelineOutcome {
	o.FinishedAt = p.now()

	stage := ""
	if o.Failure != nil {
		stage = string(o.Failure.Stage)
	}
	p.metrics.RecordRun(o.Status(), stage)
	p.metrics.RecordLatency("pipeline_run", o.Duration())

	fields := []applogger.Field{
		applogger.String("status", o.Status()),
		applogger.Bool("delivered", o.Delivered),
		applogger.Duration("duration_ms", o.Duration()),
	}
	if o.Analysis != nil {
		fields = append(fields, applogger.String("model", o.Analysis.ModelUsed))
	}
	log.Info("pipeline run finished", fields...)
	return o
}

// DiagnosticMessage is the operator notice sent when a run fails.
func DiagnosticMessage(msg string) string {
	return "⚠️ Error: " + msg
}
