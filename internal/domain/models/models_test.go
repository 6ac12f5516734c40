package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFigureRoundsToTwoPlaces(t *testing.T) {
	assert.Equal(t, "2000.00", ParseFigure("2000").String())
	assert.Equal(t, "2034.57", ParseFigure("2034.5678").String())
	assert.Equal(t, "-0.13", ParseFigure("-0.125").String())
	assert.Equal(t, "1.50", NewFigure(decimal.RequireFromString("1.5")).String())
}

func TestFigureNotAvailable(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "N/A"} {
		f := ParseFigure(in)
		assert.False(t, f.Valid(), in)
		assert.Equal(t, NotAvailable, f.String())
	}

	var zero Figure
	_, ok := zero.Float64()
	assert.False(t, ok)
}

func TestFigureJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Figure `json:"a"`
		B Figure `json:"b"`
	}{A: ParseFigure("12.3"), B: Figure{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"12.30","b":"N/A"}`, string(b))

	var got struct {
		A Figure `json:"a"`
		B Figure `json:"b"`
		C Figure `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.30","b":"N/A","c":7.005}`), &got))
	assert.Equal(t, "12.30", got.A.String())
	assert.False(t, got.B.Valid())
	assert.Equal(t, "7.01", got.C.String())
}

func TestSnapshotPriceSentinel(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := UnavailableSnapshot("PAXGUSDT", at)

	assert.Equal(t, Unavailable, s.Source)
	assert.Equal(t, PriceErrorSentinel, s.PriceLabel())

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "error", raw["price"])
	assert.Equal(t, "N/A", raw["high"])
	assert.Equal(t, "Unavailable", raw["source"])

	var back MarketSnapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Unavailable, back.Source)
	assert.False(t, back.Price.Valid())
}

func TestSnapshotFromQuote(t *testing.T) {
	q := &Quote{Symbol: "PAXGUSDT", Price: ParseFigure("2000"), High: ParseFigure("2010.5")}
	s := SnapshotFromQuote(q, PrimaryProvider, "binance", time.Now())

	assert.Equal(t, "2000.00", s.PriceLabel())
	assert.Equal(t, "2010.50", s.High.String())
	assert.Equal(t, NotAvailable, s.Low.String())
}

func TestExhaustedErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := error(&ExhaustedError{Attempts: 2, LastModel: "bad-2", LastErr: cause})

	assert.True(t, errors.Is(err, ErrAllModelsExhausted))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "bad-2")
	assert.Contains(t, err.Error(), "quota exceeded")

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 2, ex.Attempts)
}

func TestOutcomeStatus(t *testing.T) {
	o := &PipelineOutcome{RunID: "r1", Analysis: &AnalysisResult{ModelUsed: "m1", Text: "report"}}
	assert.True(t, o.Succeeded())
	assert.Equal(t, StatusSuccess, o.Status())

	o.Fail(StageDelivery, "telegram down")
	assert.False(t, o.Succeeded())
	assert.Nil(t, o.Analysis)

	rec := o.Record()
	assert.Equal(t, StatusFailure, rec.Status)
	assert.Equal(t, StageDelivery, rec.Stage)
	assert.Equal(t, PriceErrorSentinel, rec.Price)
}

func TestModelCandidateSupports(t *testing.T) {
	m := ModelCandidate{Identifier: "gemini-2.0-flash", Capabilities: []string{"countTokens", GenerateContent}}
	assert.True(t, m.Supports(GenerateContent))
	assert.False(t, m.Supports("embedContent"))
}
