package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tags where a MarketSnapshot came from. It is never empty.
type PriceSource string

const (
	PrimaryProvider PriceSource = "PrimaryProvider"
	BackupProvider  PriceSource = "BackupProvider"
	Unavailable     PriceSource = "Unavailable"
)

const (
	// NotAvailable is rendered for numeric fields a provider did not supply.
	NotAvailable = "N/A"
	// PriceErrorSentinel is rendered as the price when every provider failed.
	PriceErrorSentinel = "error"
)

// Figure is a decimal rounded to two places, or explicitly not available.
// The zero value is not available.
type Figure struct {
	value decimal.Decimal
	valid bool
}

func NewFigure(d decimal.Decimal) Figure {
	return Figure{value: d.Round(2), valid: true}
}

// ParseFigure parses a decimal string. Anything unparsable yields a not-available Figure.
func ParseFigure(s string) Figure {
	s = strings.TrimSpace(s)
	if s == "" {
		return Figure{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Figure{}
	}
	return NewFigure(d)
}

func (f Figure) Valid() bool { return f.valid }

func (f Figure) Decimal() (decimal.Decimal, bool) { return f.value, f.valid }

func (f Figure) Float64() (float64, bool) {
	if !f.valid {
		return 0, false
	}
	v, _ := f.value.Float64()
	return v, true
}

func (f Figure) String() string {
	if !f.valid {
		return NotAvailable
	}
	return f.value.StringFixed(2)
}

func (f Figure) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts a JSON number or string. Non-numeric strings such as "N/A" decode as not available.
func (f *Figure) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			*f = Figure{}
			return nil
		}
		s = n.String()
	}
	*f = ParseFigure(s)
	return nil
}

// Quote is one provider's normalized answer, before it is tagged with a source.
type Quote struct {
	Symbol        string
	Price         Figure
	ChangePercent Figure
	High          Figure
	Low           Figure
	Volume        Figure
}

// MarketSnapshot is created once per run and not modified afterwards.
type MarketSnapshot struct {
	Symbol        string      `json:"symbol"`
	Price         Figure      `json:"price"`
	ChangePercent Figure      `json:"change_percent"`
	High          Figure      `json:"high"`
	Low           Figure      `json:"low"`
	Volume        Figure      `json:"volume"`
	Source        PriceSource `json:"source"`
	Provider      string      `json:"provider,omitempty"`
	FetchedAt     time.Time   `json:"fetched_at"`
}

// SnapshotFromQuote tags a provider quote with its source.
func SnapshotFromQuote(q *Quote, source PriceSource, provider string, at time.Time) MarketSnapshot {
	return MarketSnapshot{
		Symbol:        q.Symbol,
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		High:          q.High,
		Low:           q.Low,
		Volume:        q.Volume,
		Source:        source,
		Provider:      provider,
		FetchedAt:     at,
	}
}

// UnavailableSnapshot is the degraded snapshot returned when no provider answered.
func UnavailableSnapshot(symbol string, at time.Time) MarketSnapshot {
	return MarketSnapshot{Symbol: symbol, Source: Unavailable, FetchedAt: at}
}

func (s MarketSnapshot) Available() bool {
	return s.Source != Unavailable && s.Price.Valid()
}

// PriceLabel is the price as shown to the model and API clients.
func (s MarketSnapshot) PriceLabel() string {
	if !s.Available() {
		return PriceErrorSentinel
	}
	return s.Price.String()
}

func (s MarketSnapshot) MarshalJSON() ([]byte, error) {
	type alias MarketSnapshot
	return json.Marshal(struct {
		alias
		Price string `json:"price"`
	}{alias: alias(s), Price: s.PriceLabel()})
}
