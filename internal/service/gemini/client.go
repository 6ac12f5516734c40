package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
)

const (
	apiKeyHeader = "x-goog-api-key"
	modelsPath   = "/v1beta/models"
	modelPrefix  = "models/"
	listPageSize = "1000"
)

type listResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *apiError `json:"error"`
}

// Client is the generative language REST client. The key travels in a header, never in the URL.
type Client struct {
	http            *xhttp.Client
	baseURL         string
	apiKey          string
	listTimeout     time.Duration
	generateTimeout time.Duration
}

type ClientOption func(*Client)

func WithListTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.listTimeout = d }
}

func WithGenerateTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.generateTimeout = d }
}

func NewClient(httpClient *xhttp.Client, baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		http:            httpClient,
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		listTimeout:     10 * time.Second,
		generateTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) HasCredential() bool { return c.apiKey != "" }

// ListModels returns every listed model with the "models/" prefix stripped.
func (c *Client) ListModels(ctx context.Context) ([]models.ModelCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	var resp listResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + modelsPath,
		Headers:     map[string]string{apiKeyHeader: c.apiKey},
		QueryParams: map[string][]string{"pageSize": {listPageSize}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]models.ModelCandidate, 0, len(resp.Models))
	for _, m := range resp.Models {
		id := strings.TrimPrefix(m.Name, modelPrefix)
		if id == "" {
			continue
		}
		out = append(out, models.ModelCandidate{Identifier: id, Capabilities: m.SupportedGenerationMethods})
	}
	return out, nil
}

// Generate issues exactly one generation request and classifies it.
func (c *Client) Generate(ctx context.Context, model, prompt string) models.Attempt {
	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	attempt := models.Attempt{Model: model}

	var resp generateResponse
	status, err := c.http.SendAndDecode(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s%s/%s:generateContent", c.baseURL, modelsPath, url.PathEscape(model)),
		Headers: map[string]string{apiKeyHeader: c.apiKey},
		Body:    generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}},
	}, &resp)

	switch {
	case err != nil:
		attempt.Kind = models.AttemptHardFail
		attempt.Err = err
	case resp.Error != nil:
		attempt.Kind = models.AttemptHardFail
		attempt.Err = resp.Error
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		attempt.Kind = models.AttemptHardFail
		attempt.Err = fmt.Errorf("unexpected status %d", status)
	default:
		if text := resp.text(); text != "" {
			attempt.Kind = models.AttemptSuccess
			attempt.Text = text
			return attempt
		}
		attempt.Kind = models.AttemptSoftFail
		attempt.Err = resp.emptyReason()
	}
	return attempt
}

func (e *apiError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// text joins the parts of the first candidate.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func (r *generateResponse) emptyReason() error {
	switch {
	case r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "":
		return fmt.Errorf("no generated text: prompt blocked (%s)", r.PromptFeedback.BlockReason)
	case len(r.Candidates) > 0 && r.Candidates[0].FinishReason != "":
		return fmt.Errorf("no generated text: finish reason %s", r.Candidates[0].FinishReason)
	default:
		return errors.New("no generated text in response")
	}
}
