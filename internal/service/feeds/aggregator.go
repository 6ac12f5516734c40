package feeds

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

// Aggregator fetches every feed concurrently and merges the titles in feed order.
type Aggregator struct {
	fetcher  repository.FeedFetcher
	keywords []string
	timeout  time.Duration
	metrics  repository.Metrics
	logger   *applogger.Logger
}

type Option func(*Aggregator)

// WithKeywords enables the allow-list filter. An empty list disables it.
func WithKeywords(keywords []string) Option {
	return func(a *Aggregator) { a.keywords = keywords }
}

// WithTimeout bounds each feed fetch.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

func WithMetrics(m repository.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func NewAggregator(fetcher repository.FeedFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		timeout: 10 * time.Second,
		logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate never fails. It waits for every feed to settle; each goroutine writes only its own slot.
func (a *Aggregator) Aggregate(ctx context.Context, feedURLs []string, perFeedLimit, totalLimit int) []models.Headline {
	start := time.Now()
	results := make([][]models.Headline, len(feedURLs))

	var wg sync.WaitGroup
	for i, u := range feedURLs {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, u, perFeedLimit)
		}(i, u)
	}
	wg.Wait()

	merged := Merge(results, totalLimit)
	if a.metrics != nil {
		a.metrics.RecordHeadlines(len(merged))
		a.metrics.RecordLatency("feeds_aggregate", time.Since(start))
	}
	return merged
}

func (a *Aggregator) fetchOne(ctx context.Context, feedURL string, perFeedLimit int) []models.Headline {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	host := hostOf(feedURL)

	body, err := a.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		a.logger.Warn("feed fetch failed", applogger.String("feed", feedURL), applogger.Error(err))
		a.record(host, false)
		return nil
	}

	parsed := Parse(body)
	if parsed.Kind == KindUnrecognized {
		a.logger.Warn("feed not recognised as rss or atom", applogger.String("feed", feedURL))
		a.record(host, false)
		return nil
	}
	a.record(host, true)

	titles := FilterKeywords(parsed.Titles, a.keywords)
	if len(titles) > perFeedLimit {
		titles = titles[:max(perFeedLimit, 0)]
	}

	out := make([]models.Headline, len(titles))
	for i, t := range titles {
		out[i] = models.Headline{Title: t, SourceFeed: feedURL}
	}

	a.logger.Debug("feed parsed",
		applogger.String("feed", feedURL),
		applogger.String("kind", parsed.Kind.String()),
		applogger.Int("items", len(parsed.Titles)),
		applogger.Int("kept", len(out)),
	)
	return out
}

func (a *Aggregator) record(host string, ok bool) {
	if a.metrics != nil {
		a.metrics.RecordFeedResult(host, ok)
	}
}

// Merge concatenates per-feed results in order and truncates to totalLimit. The result is never nil.
func Merge(perFeed [][]models.Headline, totalLimit int) []models.Headline {
	out := make([]models.Headline, 0, totalLimit)
	for _, hs := range perFeed {
		for _, h := range hs {
			if len(out) >= totalLimit {
				return out
			}
			out = append(out, h)
		}
	}
	return out
}

// FilterKeywords keeps titles containing at least one keyword (case-sensitive). No keywords keeps everything.
func FilterKeywords(titles, keywords []string) []string {
	if len(keywords) == 0 {
		return titles
	}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		for _, k := range keywords {
			if k != "" && strings.Contains(t, k) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
