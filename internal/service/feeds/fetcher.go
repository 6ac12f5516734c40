package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"MarketBrief/internal/domain/models"
)

// HTTPFetcher downloads feeds with a browser-like User-Agent.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFeedUnreachable, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", models.ErrFeedUnreachable, resp.StatusCode())
	}
	return resp.Body(), nil
}
