package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/service/feeds"
	"MarketBrief/internal/service/gemini"
	"MarketBrief/internal/service/price"
	xhttp "MarketBrief/pkg/http"
)

type fakeNotifier struct {
	mu         sync.Mutex
	configured bool
	err        error
	sent       []string
}

func (n *fakeNotifier) Configured() bool { return n.configured }

func (n *fakeNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.err
}

func (n *fakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

// upstream fakes every external HTTP service the pipeline talks to.
type upstream struct {
	priceDown bool
	feedsDown bool
	replies   map[string]string

	mu      sync.Mutex
	prompts []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v3/ticker/24hr":
		if u.priceDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"PAXGUSDT","lastPrice":"2000.00","priceChangePercent":"0.512","highPrice":"2010.4","lowPrice":"1990.1","volume":"1234.5"}`))

	case r.URL.Path == "/price/XAU":
		if u.priceDown {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Gold","price":1999.1,"symbol":"XAU"}`))

	case strings.HasPrefix(r.URL.Path, "/feeds/"):
		if u.feedsDown {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<rss><channel><item><title>Fed holds rates</title></item></channel></rss>`))

	case strings.HasSuffix(r.URL.Path, ":generateContent"):
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			u.mu.Lock()
			u.prompts = append(u.prompts, req.Contents[0].Parts[0].Text)
			u.mu.Unlock()
		}

		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1beta/models/"), ":generateContent")
		if reply, ok := u.replies[model]; ok {
			_, _ = w.Write([]byte(reply))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"` + model + ` broke"}}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *upstream) Prompts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.prompts...)
}

func newTestPipeline(t *testing.T, up *upstream, notifier *fakeNotifier, candidates []string, cfg PipelineConfig) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	hc := xhttp.NewClient(xhttp.WithTimeout(2 * time.Second))
	resolver := price.NewResolver(
		price.NewBinance(hc, srv.URL, "PAXGUSDT"),
		"PAXGUSDT",
		price.WithBackup(price.NewSpot(hc, srv.URL, "XAU", "")),
		price.WithTimeout(time.Second),
	)
	agg := feeds.NewAggregator(feeds.NewHTTPFetcher("test", time.Second), feeds.WithTimeout(time.Second))
	inv := gemini.NewInvoker(gemini.NewClient(hc, srv.URL, "key"), gemini.WithStaticCandidates(candidates))

	cfg.FeedURLs = []string{srv.URL + "/feeds/a", srv.URL + "/feeds/b"}
	if cfg.PerFeedLimit == 0 {
		cfg.PerFeedLimit = 5
	}
	if cfg.TotalLimit == 0 {
		cfg.TotalLimit = 1
	}
	if cfg.Language == "" {
		cfg.Language = "Persian"
	}

	tmpl, err := NewPromptTemplate("")
	require.NoError(t, err)

	return NewPipeline(resolver, agg, inv, tmpl, notifier, nil, nil, cfg)
}

func TestPipelineEndToEndSuccess(t *testing.T) {
	up := &upstream{replies: map[string]string{
		"m1": `{"candidates":[{"content":{"parts":[{"text":"report text"}]}}]}`,
	}}
	notifier := &fakeNotifier{configured: true}
	p := newTestPipeline(t, up, notifier, []string{"m1"}, PipelineConfig{RunTimeout: 5 * time.Second})

	o := p.Run(context.Background(), "manual")

	require.True(t, o.Succeeded())
	assert.Equal(t, models.StatusSuccess, o.Status())
	assert.Equal(t, &models.AnalysisResult{ModelUsed: "m1", Text: "report text"}, o.Analysis)
	assert.Equal(t, "2000.00", o.Snapshot.PriceLabel())
	assert.Equal(t, models.PrimaryProvider, o.Snapshot.Source)
	assert.Equal(t, []string{"Fed holds rates"}, models.Titles(o.Headlines))
	assert.Equal(t, []string{"report text"}, notifier.Sent())
	assert.True(t, o.Delivered)
	assert.Empty(t, o.DeliveryError)
	assert.NotEmpty(t, o.RunID)
	assert.Equal(t, "manual", o.Trigger)
	assert.False(t, o.FinishedAt.Before(o.StartedAt))

	prompts := up.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "- Fed holds rates\n")
	assert.Contains(t, prompts[0], "Price: $2000.00")
	assert.Contains(t, prompts[0], "Day High: $2010.40")
	assert.Contains(t, prompts[0], "Persian")
}

func TestPipelineEndToEndFailure(t *testing.T) {
	up := &upstream{priceDown: true, feedsDown: true}
	notifier := &fakeNotifier{configured: true}
	p := newTestPipeline(t, up, notifier, []string{"m1", "m2"}, PipelineConfig{RunTimeout: 5 * time.Second})

	o := p.Run(context.Background(), "manual")

	require.False(t, o.Succeeded())
	require.NotNil(t, o.Failure)
	assert.Equal(t, models.StageModel, o.Failure.Stage)
	assert.Contains(t, o.Failure.Message, "m2 broke")
	assert.Nil(t, o.Analysis)

	assert.Equal(t, models.Unavailable, o.Snapshot.Source)
	assert.Equal(t, models.PriceErrorSentinel, o.Snapshot.PriceLabel())
	assert.NotNil(t, o.Headlines)
	assert.Empty(t, o.Headlines)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "⚠️ Error: "))
	assert.Contains(t, sent[0], "m2 broke")
}

func TestPipelineFailureWithoutNotifierSendsNothing(t *testing.T) {
	up := &upstream{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(t, up, notifier, []string{"m1"}, PipelineConfig{})

	o := p.Run(context.Background(), "schedule")

	require.NotNil(t, o.Failure)
	assert.Equal(t, models.StageModel, o.Failure.Stage)
	assert.Empty(t, notifier.Sent())
}

func TestPipelineDeliveryFailureIsRecorded(t *testing.T) {
	up := &upstream{replies: map[string]string{
		"m1": `{"candidates":[{"content":{"parts":[{"text":"report text"}]}}]}`,
	}}

	t.Run("not required", func(t *testing.T) {
		notifier := &fakeNotifier{configured: true, err: errors.New("telegram down")}
		o := newTestPipeline(t, up, notifier, []string{"m1"}, PipelineConfig{}).Run(context.Background(), "manual")

		assert.True(t, o.Succeeded())
		assert.False(t, o.Delivered)
		assert.Equal(t, "telegram down", o.DeliveryError)
		assert.Len(t, notifier.Sent(), 1)
	})

	t.Run("required", func(t *testing.T) {
		notifier := &fakeNotifier{configured: true, err: errors.New("telegram down")}
		o := newTestPipeline(t, up, notifier, []string{"m1"}, PipelineConfig{DeliveryRequired: true}).Run(context.Background(), "manual")

		require.NotNil(t, o.Failure)
		assert.Equal(t, models.StageDelivery, o.Failure.Stage)
		assert.Nil(t, o.Analysis)
		assert.Len(t, notifier.Sent(), 1)
	})

	t.Run("unconfigured", func(t *testing.T) {
		notifier := &fakeNotifier{}
		o := newTestPipeline(t, up, notifier, []string{"m1"}, PipelineConfig{}).Run(context.Background(), "manual")

		assert.True(t, o.Succeeded())
		assert.False(t, o.Delivered)
		assert.NotEmpty(t, o.DeliveryError)
		assert.Empty(t, notifier.Sent())
	})
}

func TestBuildPrompt(t *testing.T) {
	data := models.PromptData{
		Date:     "2026-03-01 (Sunday)",
		Time:     "12:30 +0330",
		Language: "Persian",
		Snapshot: models.SnapshotFromQuote(&models.Quote{
			Symbol:        "PAXGUSDT",
			Price:         models.ParseFigure("2000"),
			ChangePercent: models.ParseFigure("-0.256"),
		}, models.PrimaryProvider, "binance", time.Now()),
		Headlines: []models.Headline{{Title: "Gold rallies"}, {Title: "Fed holds rates"}},
	}

	out, err := BuildPrompt(data)
	require.NoError(t, err)

	assert.Contains(t, out, "Current Time: 2026-03-01 (Sunday) | 12:30 +0330")
	assert.Contains(t, out, "Price: $2000.00")
	assert.Contains(t, out, "Change (24h): -0.26%")
	assert.Contains(t, out, "Day High: $N/A (Strong Resistance)")
	assert.Contains(t, out, "- Gold rallies\n- Fed holds rates\n")
	assert.NotContains(t, out, "No major news currently.")
	assert.Contains(t, out, "professional Persian Telegram report")
}

func TestBuildPromptDegradedInputs(t *testing.T) {
	out, err := BuildPrompt(models.PromptData{
		Language: "English",
		Snapshot: models.UnavailableSnapshot("PAXGUSDT", time.Now()),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Price: $error")
	assert.Contains(t, out, "No major news currently.")
}

func TestNewPromptTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Language}}: {{.Snapshot.PriceLabel}} / {{len .Headlines}}"), 0o644))

	tmpl, err := NewPromptTemplate(path)
	require.NoError(t, err)

	out, err := tmpl.Build(models.PromptData{
		Language:  "English",
		Snapshot:  models.UnavailableSnapshot("X", time.Now()),
		Headlines: []models.Headline{{Title: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "English: error / 1", out)

	_, err = NewPromptTemplate(filepath.Join(t.TempDir(), "missing.tmpl"))
	assert.Error(t, err)
}
