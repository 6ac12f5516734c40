package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

// MaxMessageRunes is the sendMessage text limit.
const MaxMessageRunes = 4096

const redacted = "<redacted>"

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Client delivers plain-text messages through the Bot API.
type Client struct {
	http    *xhttp.Client
	baseURL string
	token   string
	chatID  string
}

func NewClient(httpClient *xhttp.Client, baseURL, token, chatID string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
	}
}

// Configured reports whether both the bot token and the destination chat are set.
func (c *Client) Configured() bool {
	return c.token != "" && c.chatID != ""
}

// Send formats text and posts it, split into as many messages as the length limit requires.
func (c *Client) Send(ctx context.Context, text string) error {
	if !c.Configured() {
		return fmt.Errorf("%w: %w", models.ErrDeliveryFailed, models.ErrMissingCredential)
	}

	msg := Format(text)
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: empty message", models.ErrDeliveryFailed)
	}

	for _, chunk := range Split(msg, MaxMessageRunes) {
		if err := c.send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, text string) error {
	var resp sendMessageResponse
	status, err := c.http.SendAndDecode(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token),
		Body:   sendMessageRequest{ChatID: c.chatID, Text: text},
	}, &resp)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrDeliveryFailed, c.redact(err.Error()))
	}
	if !resp.OK || status != http.StatusOK {
		desc := resp.Description
		if desc == "" {
			desc = "no description"
		}
		return fmt.Errorf("%w: status %d: %s", models.ErrDeliveryFailed, status, c.redact(desc))
	}
	return nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, redacted)
}

// Format removes '*' and maps '_' to '-' so stray markdown never reaches the chat.
func Format(text string) string {
	return strings.NewReplacer("*", "", "_", "-").Replace(text)
}

// Split cuts s into pieces of at most limit runes, preferring a newline in the second half of each window.
func Split(s string, limit int) []string {
	if limit <= 0 {
		return []string{s}
	}

	runes := []rune(s)
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
