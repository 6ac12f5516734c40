package price

import (
	"context"
	"fmt"
	"strings"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

const binanceTickerPath = "/api/v3/ticker/24hr"

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
}

// Binance reads the 24h rolling ticker of a spot symbol, PAXGUSDT by default.
type Binance struct {
	client  *xhttp.Client
	baseURL string
	symbol  string
}

func NewBinance(client *xhttp.Client, baseURL, symbol string) *Binance {
	return &Binance{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		symbol:  symbol,
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Quote(ctx context.Context) (*models.Quote, error) {
	var t binanceTicker
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + binanceTickerPath,
		QueryParams: map[string][]string{"symbol": {b.symbol}},
	}, &t)
	if err != nil {
		return nil, fmt.Errorf("binance ticker: %w", err)
	}

	q := &models.Quote{
		Symbol:        b.symbol,
		Price:         models.ParseFigure(t.LastPrice),
		ChangePercent: models.ParseFigure(t.PriceChangePercent),
		High:          models.ParseFigure(t.HighPrice),
		Low:           models.ParseFigure(t.LowPrice),
		Volume:        models.ParseFigure(t.Volume),
	}
	if err := requirePositive(q.Price); err != nil {
		return nil, fmt.Errorf("binance ticker: lastPrice %q: %w", t.LastPrice, err)
	}
	return q, nil
}
