package service

import (
	"context"

	"MarketBrief/internal/domain/models"
)

// PriceResolver never fails; total failure is reported through the snapshot's source.
type PriceResolver interface {
	Resolve(ctx context.Context) models.MarketSnapshot
}

// FeedAggregator never fails; unreachable feeds contribute nothing.
type FeedAggregator interface {
	Aggregate(ctx context.Context, feedURLs []string, perFeedLimit, totalLimit int) []models.Headline
}

// ModelInvoker returns a complete AnalysisResult or an error matching models.ErrAllModelsExhausted
// or models.ErrMissingCredential.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string, candidates []string) (models.AnalysisResult, error)
	Candidates(ctx context.Context) ([]string, error)
}

// PromptBuilder turns the gathered data into the model prompt.
type PromptBuilder interface {
	Build(data models.PromptData) (string, error)
}
