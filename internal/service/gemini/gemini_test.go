package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

// fakeAPI serves the listing endpoint and one generateContent reply per model.
type fakeAPI struct {
	mu       sync.Mutex
	listing  string
	listCode int
	replies  map[string]string
	calls    []string
	gotKeys  []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gotKeys = append(f.gotKeys, r.Header.Get(apiKeyHeader))

	if r.Method == http.MethodGet && r.URL.Path == modelsPath {
		if f.listCode != 0 {
			w.WriteHeader(f.listCode)
			return
		}
		_, _ = w.Write([]byte(f.listing))
		return
	}

	model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, modelsPath+"/"), ":generateContent")
	f.calls = append(f.calls, model)

	reply, ok := f.replies[model]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"model ` + model + ` not found","status":"NOT_FOUND"}}`))
		return
	}
	_, _ = w.Write([]byte(reply))
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func textReply(s string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": s}}},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, api *fakeAPI, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), srv.URL, key)
}

func TestInvokeSkipsModelWithErrorField(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{
		"bad-model":  `{"error":{"code":400,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
		"good-model": textReply("analysis"),
	}}
	inv := NewInvoker(newTestClient(t, api, "k"))

	res, err := inv.Invoke(context.Background(), "prompt", []string{"bad-model", "good-model"})

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisResult{ModelUsed: "good-model", Text: "analysis"}, res)
	assert.Equal(t, []string{"bad-model", "good-model"}, api.Calls())
}

func TestInvokeAllFailCarriesLastError(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{
		"bad-1": `{"error":{"code":500,"message":"first broke"}}`,
		"bad-2": `{"error":{"code":503,"message":"second broke","status":"UNAVAILABLE"}}`,
	}}
	inv := NewInvoker(newTestClient(t, api, "k"))

	res, err := inv.Invoke(context.Background(), "prompt", []string{"bad-1", "bad-2"})

	require.Error(t, err)
	assert.Equal(t, models.AnalysisResult{}, res)
	assert.ErrorIs(t, err, models.ErrAllModelsExhausted)
	assert.Contains(t, err.Error(), "second broke")
	assert.NotContains(t, err.Error(), "first broke")

	var ex *models.ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, "bad-2", ex.LastModel)
	assert.Equal(t, 2, ex.Attempts)
	assert.Equal(t, []string{"bad-1", "bad-2"}, api.Calls())
}

func TestInvokeSoftFailAdvances(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{
		"empty":   `{"candidates":[{"finishReason":"SAFETY"}]}`,
		"blocked": `{"promptFeedback":{"blockReason":"OTHER"}}`,
		"ok":      textReply("  done  "),
	}}
	inv := NewInvoker(newTestClient(t, api, "k"))

	res, err := inv.Invoke(context.Background(), "prompt", []string{"empty", "blocked", "ok"})

	require.NoError(t, err)
	assert.Equal(t, "ok", res.ModelUsed)
	assert.Equal(t, "done", res.Text)
}

func TestInvokeSoftFailOnlyIsExhausted(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{"empty": `{"candidates":[]}`}}
	inv := NewInvoker(newTestClient(t, api, "k"))

	_, err := inv.Invoke(context.Background(), "prompt", []string{"empty"})

	require.ErrorIs(t, err, models.ErrAllModelsExhausted)
	assert.Contains(t, err.Error(), "no generated text")
}

func TestInvokeMissingCredential(t *testing.T) {
	api := &fakeAPI{}
	inv := NewInvoker(newTestClient(t, api, ""))

	_, err := inv.Invoke(context.Background(), "prompt", []string{"m1"})
	assert.ErrorIs(t, err, models.ErrMissingCredential)

	_, err = inv.Candidates(context.Background())
	assert.ErrorIs(t, err, models.ErrMissingCredential)
	assert.Empty(t, api.Calls())
}

func TestInvokeNoCandidates(t *testing.T) {
	inv := NewInvoker(newTestClient(t, &fakeAPI{}, "k"))

	_, err := inv.Invoke(context.Background(), "prompt", nil)

	assert.ErrorIs(t, err, models.ErrAllModelsExhausted)
}

func TestCandidatesDiscoveredRanksAndCaps(t *testing.T) {
	api := &fakeAPI{listing: `{"models":[
		{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]},
		{"name":"models/gemini-1.0-pro","supportedGenerationMethods":["generateContent"]},
		{"name":"models/gemini-legacy","supportedGenerationMethods":["generateContent"]},
		{"name":"models/gemini-1.5-flash","supportedGenerationMethods":["generateContent","countTokens"]},
		{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent"]}
	]}`}
	inv := NewInvoker(newTestClient(t, api, "secret"), WithMaxCandidates(3))

	ids, err := inv.Candidates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-2.0-flash", "gemini-1.0-pro"}, ids)
	assert.Equal(t, []string{"secret"}, api.gotKeys)
}

func TestCandidatesListingFailure(t *testing.T) {
	api := &fakeAPI{listCode: http.StatusForbidden}
	inv := NewInvoker(newTestClient(t, api, "k"))

	_, err := inv.Candidates(context.Background())

	require.ErrorIs(t, err, models.ErrAllModelsExhausted)
	var se *xhttp.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestCandidatesNoUsableModel(t *testing.T) {
	api := &fakeAPI{listing: `{"models":[{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}]}`}
	inv := NewInvoker(newTestClient(t, api, "k"))

	_, err := inv.Candidates(context.Background())

	assert.ErrorIs(t, err, models.ErrAllModelsExhausted)
}

func TestCandidatesStatic(t *testing.T) {
	api := &fakeAPI{}
	inv := NewInvoker(newTestClient(t, api, "k"), WithStaticCandidates([]string{"m2", "m1"}))

	ids, err := inv.Candidates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids)
	assert.Empty(t, api.gotKeys)
}

func TestRankIsStableWithinTier(t *testing.T) {
	gc := []string{models.GenerateContent}
	ids := Rank([]models.ModelCandidate{
		{Identifier: "z-pro", Capabilities: gc},
		{Identifier: "a-flash", Capabilities: gc},
		{Identifier: "other", Capabilities: gc},
		{Identifier: "b-pro", Capabilities: gc},
		{Identifier: "c-flash", Capabilities: gc},
	})

	assert.Equal(t, []string{"a-flash", "c-flash", "z-pro", "b-pro", "other"}, ids)
}

func TestGenerateJoinsParts(t *testing.T) {
	api := &fakeAPI{replies: map[string]string{
		"m": `{"candidates":[{"content":{"parts":[{"text":"part one, "},{"text":"part two"}]}}]}`,
	}}
	c := newTestClient(t, api, "k")

	a := c.Generate(context.Background(), "m", "prompt")

	assert.Equal(t, models.AttemptSuccess, a.Kind)
	assert.Equal(t, "part one, part two", a.Text)
	assert.NoError(t, a.Err)
}

func TestGenerateTransportErrorIsHardFail(t *testing.T) {
	c := NewClient(xhttp.NewClient(), "http://127.0.0.1:1", "k")

	a := c.Generate(context.Background(), "m", "prompt")

	assert.Equal(t, models.AttemptHardFail, a.Kind)
	assert.Error(t, a.Err)
}
