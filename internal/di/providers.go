package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"MarketBrief/internal/domain/repository"
	dsvc "MarketBrief/internal/domain/service"
	"MarketBrief/internal/handler/api"
	mid "MarketBrief/internal/middleware"
	internalrepo "MarketBrief/internal/repository"
	"MarketBrief/internal/service/feeds"
	"MarketBrief/internal/service/gemini"
	"MarketBrief/internal/service/price"
	"MarketBrief/internal/service/ratelimit"
	"MarketBrief/internal/service/telegram"
	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
	pkgch "MarketBrief/pkg/clickhouse"
	"MarketBrief/pkg/config"
	xhttp "MarketBrief/pkg/http"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/metrics"
	"MarketBrief/pkg/server"
	"MarketBrief/pkg/util"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithRetries(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async, func(topic string, count int, err error) {
			// The logger is built after the producer, so async failures go to stderr.
			fmt.Fprintf(os.Stderr, "kafka async write to %s failed (%d messages): %v\n", topic, count, err)
		}),
		pkgkafka.WithKeyHashing(true),
		pkgkafka.WithAutoCreateTopics(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and, when enabled, attaches the Kafka log collector.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	if !cfg.Logging.Collect.Enabled || producer == nil {
		return l, func() {}, nil
	}

	l.AddCollector(&applogger.CollectionConfig{
		FlushInterval:  cfg.Logging.Collect.FlushInterval,
		CountThreshold: cfg.Logging.Collect.CountThreshold,
		Publisher:      internalrepo.NewKafkaLogPublisher(producer, cfg.Logging.Collect.Topic),
	})
	return l, l.RemoveCollector, nil
}

// ProvideRecorder creates the Prometheus recorder on the default registry.
func ProvideRecorder() *metrics.Recorder {
	return metrics.New()
}

func ProvideMetrics(rec *metrics.Recorder) repository.Metrics {
	return rec
}

func ProvidePriceResolver(cfg *config.Config, m repository.Metrics, l *applogger.Logger) dsvc.PriceResolver {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Price.Timeout),
		xhttp.WithHeader("User-Agent", cfg.Feeds.UserAgent),
	)

	opts := []price.Option{
		price.WithTimeout(cfg.Price.Timeout),
		price.WithMetrics(m),
		price.WithLogger(l),
	}
	if cfg.Price.Backup.Enabled {
		opts = append(opts, price.WithBackup(
			price.NewSpot(client, cfg.Price.Backup.BaseURL, cfg.Price.Backup.Metal, cfg.Price.Backup.APIKey),
		))
	}

	primary := price.NewBinance(client, cfg.Price.Primary.BaseURL, cfg.Price.Primary.Symbol)
	return price.NewResolver(primary, cfg.Price.Primary.Symbol, opts...)
}

func ProvideFeedAggregator(cfg *config.Config, m repository.Metrics, l *applogger.Logger) dsvc.FeedAggregator {
	return feeds.NewAggregator(
		feeds.NewHTTPFetcher(cfg.Feeds.UserAgent, cfg.Feeds.Timeout),
		feeds.WithKeywords(cfg.Feeds.Keywords),
		feeds.WithTimeout(cfg.Feeds.Timeout),
		feeds.WithMetrics(m),
		feeds.WithLogger(l),
	)
}

func ProvideModelClient(cfg *config.Config) repository.ModelClient {
	// Per-call deadlines come from the context; the client timeout is only an upper bound.
	client := xhttp.NewClient(xhttp.WithTimeout(max(cfg.Model.GenerateTimeout, cfg.Model.ListTimeout)))
	return gemini.NewClient(client, cfg.Model.BaseURL, cfg.Model.APIKey,
		gemini.WithListTimeout(cfg.Model.ListTimeout),
		gemini.WithGenerateTimeout(cfg.Model.GenerateTimeout),
	)
}

func ProvideModelInvoker(cfg *config.Config, client repository.ModelClient, m repository.Metrics, l *applogger.Logger) dsvc.ModelInvoker {
	opts := []gemini.InvokerOption{
		gemini.WithMaxCandidates(cfg.Model.MaxCandidates),
		gemini.WithMetrics(m),
		gemini.WithLogger(l),
	}
	if cfg.Model.Strategy == gemini.StrategyStatic {
		opts = append(opts, gemini.WithStaticCandidates(cfg.Model.Candidates))
	}
	return gemini.NewInvoker(client, opts...)
}

func ProvideNotifier(cfg *config.Config) repository.Notifier {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Telegram.Timeout))
	return telegram.NewClient(client, cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func ProvidePromptBuilder(cfg *config.Config) (dsvc.PromptBuilder, error) {
	tmpl, err := usecase.NewPromptTemplate(cfg.Report.PromptTemplatePath)
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

func ProvidePipeline(
	cfg *config.Config,
	resolver dsvc.PriceResolver,
	agg dsvc.FeedAggregator,
	invoker dsvc.ModelInvoker,
	prompts dsvc.PromptBuilder,
	notifier repository.Notifier,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(resolver, agg, invoker, prompts, notifier, m, l, usecase.PipelineConfig{
		FeedURLs:         cfg.Feeds.URLs,
		PerFeedLimit:     cfg.Feeds.PerFeedLimit,
		TotalLimit:       cfg.Feeds.TotalLimit,
		RunTimeout:       cfg.Pipeline.RunTimeout,
		DeliveryRequired: cfg.Pipeline.DeliveryRequired,
		Location:         util.LoadLocationDefault(cfg.Pipeline.Timezone),
		Language:         cfg.Report.Language,
	})
}

// ProvideCache creates the cache backend selected by cache.type.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	memOpts := []cache.MemoryOption{cache.WithMemoryLimits(cfg.Cache.MemoryMaxEntries, 0)}

	var svc cache.Service
	switch cfg.Cache.Type {
	case "redis", "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
			cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 0),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		svc = rc
		if cfg.Cache.Type == "layered" {
			svc = cache.NewLayeredCache(rc, cfg.Cache.L1TTL, memOpts...)
		}
	default:
		svc = cache.NewMemoryCache(memOpts...)
	}

	return svc, func() { _ = svc.Close() }, nil
}

func ProvideReportStore(cfg *config.Config, c cache.Service) repository.ReportStore {
	return internalrepo.NewCacheReportStore(c, cfg.Cache.LatestTTL)
}

// ProvideRunHistory returns the ClickHouse archive, or a no-op when ClickHouse is disabled.
func ProvideRunHistory(cfg *config.Config, l *applogger.Logger) (repository.RunHistory, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NoopRunHistory{}, func() {}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(4, 2, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.RunHistorySchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewCHRunHistory(client, cfg.ClickHouse.Database, l), func() { _ = client.Close() }, nil
}

// ProvideOutcomePublisher streams outcomes to Kafka, or drops them when Kafka is disabled.
func ProvideOutcomePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.OutcomePublisher {
	if producer == nil {
		return internalrepo.NoopOutcomePublisher{}
	}
	return internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomeTopic)
}

func ProvideReportService(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	store repository.ReportStore,
	history repository.RunHistory,
	publisher repository.OutcomePublisher,
	l *applogger.Logger,
) *usecase.ReportService {
	return usecase.NewReportService(pipeline, store, history, publisher, cfg.Pipeline.LockTTL, l)
}

func ProvideScheduler(cfg *config.Config, svc *usecase.ReportService, l *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(svc, cfg.Trigger.Schedule.Interval, cfg.Trigger.Schedule.RunOnStart, l)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) mid.Allower {
	if !cfg.Trigger.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Trigger.RateLimit.Capacity, cfg.Trigger.RateLimit.RefillPerSec)
}

func ProvideHTTPHandler(cfg *config.Config, svc *usecase.ReportService, limiter mid.Allower, l *applogger.Logger) xhttp.Handler {
	return api.NewReportEchoHandler(l, svc, cfg.Trigger.Secret, limiter)
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, rec *metrics.Recorder, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORS(cfg.Server.AllowOrigins, mid.SecretHeader, echo.HeaderContentType),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, rec))
	}
	return xhttp.NewServer(h, opts...)
}

func ProvideApp(cfg *config.Config, srv *xhttp.Server, scheduler *usecase.Scheduler, l *applogger.Logger) *server.App {
	return server.New(cfg, srv, scheduler, l)
}
