package price

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

type spotResponse struct {
	Name   string           `json:"name"`
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
}

// Spot reads a single spot price from a /price/{metal} JSON API. It has no day range.
type Spot struct {
	client  *xhttp.Client
	baseURL string
	metal   string
	apiKey  string
}

func NewSpot(client *xhttp.Client, baseURL, metal, apiKey string) *Spot {
	return &Spot{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		metal:   metal,
		apiKey:  apiKey,
	}
}

func (s *Spot) Name() string { return "spot" }

func (s *Spot) Quote(ctx context.Context) (*models.Quote, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/price/%s", s.baseURL, s.metal),
	}
	if s.apiKey != "" {
		opts.Headers = map[string]string{"x-access-token": s.apiKey}
	}

	var r spotResponse
	if err := s.client.SendAndParse(ctx, opts, &r); err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}
	if r.Price == nil {
		return nil, errors.New("spot price: response has no price")
	}

	q := &models.Quote{
		Symbol: s.metal + "USD",
		Price:  models.NewFigure(*r.Price),
	}
	if err := requirePositive(q.Price); err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}
	return q, nil
}

var errBadPrice = errors.New("missing or non-positive price")

func requirePositive(f models.Figure) error {
	d, ok := f.Decimal()
	if !ok || !d.IsPositive() {
		return errBadPrice
	}
	return nil
}
