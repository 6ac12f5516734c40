package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

const (
	StrategyStatic     = "static"
	StrategyDiscovered = "discovered"
)

// Invoker walks an ordered candidate list and returns the first usable generation.
type Invoker struct {
	client        repository.ModelClient
	strategy      string
	static        []string
	maxCandidates int
	metrics       repository.Metrics
	logger        *applogger.Logger
}

type InvokerOption func(*Invoker)

// WithStaticCandidates switches to the static strategy with a fixed fallback chain.
func WithStaticCandidates(ids []string) InvokerOption {
	return func(i *Invoker) {
		i.strategy = StrategyStatic
		i.static = ids
	}
}

func WithMaxCandidates(n int) InvokerOption {
	return func(i *Invoker) {
		if n > 0 {
			i.maxCandidates = n
		}
	}
}

func WithMetrics(m repository.Metrics) InvokerOption {
	return func(i *Invoker) { i.metrics = m }
}

func WithLogger(l *applogger.Logger) InvokerOption {
	return func(i *Invoker) { i.logger = l }
}

func NewInvoker(client repository.ModelClient, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		client:        client,
		strategy:      StrategyDiscovered,
		maxCandidates: 3,
		logger:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Candidates resolves this run's ordered candidate identifiers.
// The discovered strategy makes exactly one listing call.
func (i *Invoker) Candidates(ctx context.Context) ([]string, error) {
	if !i.client.HasCredential() {
		return nil, fmt.Errorf("model api key: %w", models.ErrMissingCredential)
	}

	if i.strategy == StrategyStatic {
		if len(i.static) == 0 {
			return nil, &models.ExhaustedError{}
		}
		return slices.Clone(i.static), nil
	}

	listed, err := i.client.ListModels(ctx)
	if err != nil {
		return nil, &models.ExhaustedError{LastErr: err}
	}

	ids := Rank(listed)
	if len(ids) == 0 {
		return nil, &models.ExhaustedError{LastErr: errors.New("no listed model supports " + models.GenerateContent)}
	}
	if len(ids) > i.maxCandidates {
		ids = ids[:i.maxCandidates]
	}

	i.logger.Debug("model candidates discovered",
		applogger.Int("listed", len(listed)),
		applogger.Strings("candidates", ids),
	)
	return ids, nil
}

// Invoke tries each candidate once, in order. It never returns a partial result.
func (i *Invoker) Invoke(ctx context.Context, prompt string, candidates []string) (models.AnalysisResult, error) {
	if !i.client.HasCredential() {
		return models.AnalysisResult{}, fmt.Errorf("model api key: %w", models.ErrMissingCredential)
	}
	if len(candidates) == 0 {
		return models.AnalysisResult{}, &models.ExhaustedError{}
	}

	var last models.Attempt
	for n, id := range candidates {
		if err := ctx.Err(); err != nil {
			return models.AnalysisResult{}, &models.ExhaustedError{Attempts: n, LastModel: last.Model, LastErr: err}
		}

		a := i.client.Generate(ctx, id, prompt)
		if i.metrics != nil {
			i.metrics.RecordModelAttempt(id, string(a.Kind))
		}

		if a.Kind == models.AttemptSuccess && strings.TrimSpace(a.Text) != "" {
			i.logger.Info("model answered", applogger.String("model", id), applogger.Int("attempt", n+1))
			return models.AnalysisResult{ModelUsed: id, Text: a.Text}, nil
		}

		if a.Err == nil {
			a.Err = errors.New("no generated text in response")
		}
		i.logger.Warn("model attempt failed",
			applogger.String("model", id),
			applogger.String("kind", string(a.Kind)),
			applogger.Error(a.Err),
		)
		last = a
	}

	return models.AnalysisResult{}, &models.ExhaustedError{
		Attempts:  len(candidates),
		LastModel: last.Model,
		LastErr:   last.Err,
	}
}

// Rank keeps generateContent models and orders flash before pro before the rest, stable within a tier.
func Rank(listed []models.ModelCandidate) []string {
	usable := make([]models.ModelCandidate, 0, len(listed))
	for _, m := range listed {
		if m.Supports(models.GenerateContent) {
			usable = append(usable, m)
		}
	}

	slices.SortStableFunc(usable, func(a, b models.ModelCandidate) int {
		return tier(a.Identifier) - tier(b.Identifier)
	})

	ids := make([]string, len(usable))
	for n, m := range usable {
		ids[n] = m.Identifier
	}
	return ids
}

func tier(id string) int {
	id = strings.ToLower(id)
	switch {
	case strings.Contains(id, "flash"):
		return 0
	case strings.Contains(id, "pro"):
		return 1
	default:
		return 2
	}
}
