package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

type botAPI struct {
	mu    sync.Mutex
	paths []string
	sent  []sendMessageRequest
	fail  bool
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var req sendMessageRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.paths = append(b.paths, r.URL.Path)
	b.sent = append(b.sent, req)

	if b.fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
}

func newBot(t *testing.T, api *botAPI, token, chat string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(xhttp.NewClient(), srv.URL, token, chat)
}

func TestSendPostsFormattedText(t *testing.T) {
	api := &botAPI{}
	c := newBot(t, api, "123:abc", "-100")

	require.NoError(t, c.Send(context.Background(), "*Gold* at snake_case"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", api.paths[0])
	assert.Equal(t, sendMessageRequest{ChatID: "-100", Text: "Gold at snake-case"}, api.sent[0])
}

func TestSendSplitsLongMessages(t *testing.T) {
	api := &botAPI{}
	c := newBot(t, api, "t", "c")

	text := strings.Repeat("ط", MaxMessageRunes+10)
	require.NoError(t, c.Send(context.Background(), text))

	require.Len(t, api.sent, 2)
	assert.Equal(t, MaxMessageRunes, utf8.RuneCountInString(api.sent[0].Text))
	assert.Equal(t, 10, utf8.RuneCountInString(api.sent[1].Text))
}

func TestSendFailureRedactsToken(t *testing.T) {
	api := &botAPI{fail: true}
	c := newBot(t, api, "secret-token", "c")

	err := c.Send(context.Background(), "hello")

	require.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestSendTransportErrorRedactsToken(t *testing.T) {
	c := NewClient(xhttp.NewClient(), "http://127.0.0.1:1", "secret-token", "c")

	err := c.Send(context.Background(), "hello")

	require.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestConfigured(t *testing.T) {
	assert.True(t, NewClient(nil, "", "t", "c").Configured())
	assert.False(t, NewClient(nil, "", "", "c").Configured())
	assert.False(t, NewClient(nil, "", "t", "").Configured())

	err := NewClient(nil, "", "", "").Send(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.ErrorIs(t, err, models.ErrMissingCredential)
}

func TestSplitPrefersNewline(t *testing.T) {
	parts := Split("aaaa\nbbbbbb", 8)
	assert.Equal(t, []string{"aaaa\n", "bbbbbb"}, parts)

	assert.Equal(t, []string{"abc"}, Split("abc", 8))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, Split("abcdefghij", 4))
}
