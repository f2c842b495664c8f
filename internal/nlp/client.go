package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/pkg/config"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
	"github.com/EgorSmi/hack-fake-news/pkg/resilience"
)

// httpClient is the shared JSON-over-HTTP transport for all collaborator
// clients. Calls run under the configured per-service timeout, behind a
// circuit breaker, with a bounded retry.
type httpClient struct {
	name    string
	cfg     config.CollaboratorConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	m       *metrics.Metrics
}

func newHTTPClient(name string, cfg config.CollaboratorConfig) *httpClient {
	return &httpClient{
		name:    name,
		cfg:     cfg,
		client:  &http.Client{},
		breaker: resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "nlp-client", "collaborator", name),
	}
}

// post sends the request payload and decodes the response into out. Any
// transport, timeout, or non-200 failure is wrapped as
// ErrCollaboratorUnavailable so callers can distinguish a retrievable
// collaborator fault from their own bad input.
func (c *httpClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", c.name, err)
	}
	call := func() error {
		return resilience.WithTimeout(ctx, c.cfg.Timeout, c.name, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("%s returned %d: %s", c.name, resp.StatusCode, snippet)
			}
			return json.NewDecoder(resp.Body).Decode(out)
		})
	}
	err = c.breaker.Execute(func() error {
		return resilience.Retry(ctx, c.name, resilience.RetryConfig{MaxAttempts: 2}, call)
	})
	if err != nil {
		c.countCall("error")
		if ctx.Err() != nil {
			return fmt.Errorf("%s call cancelled: %w", c.name, ctx.Err())
		}
		return fmt.Errorf("%s: %v: %w", c.name, err, apperrors.ErrCollaboratorUnavailable)
	}
	c.countCall("ok")
	return nil
}

func (c *httpClient) countCall(status string) {
	if c.m != nil {
		c.m.CollaboratorCallsTotal.WithLabelValues(c.name, status).Inc()
	}
}

// ExtractorClient talks to the NER collaborator.
type ExtractorClient struct {
	http *httpClient
}

// NewExtractorClient creates an entity-extraction client.
func NewExtractorClient(cfg config.CollaboratorConfig) *ExtractorClient {
	return &ExtractorClient{http: newHTTPClient("entity-extractor", cfg)}
}

// WithMetrics enables per-call counters. m may be nil.
func (c *ExtractorClient) WithMetrics(m *metrics.Metrics) *ExtractorClient {
	c.http.m = m
	return c
}

// Extract returns the raw entity surface forms of text in first-occurrence
// order.
func (c *ExtractorClient) Extract(ctx context.Context, text string) ([]string, error) {
	var resp struct {
		Entities []string `json:"entities"`
	}
	if err := c.http.post(ctx, "/extract", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// LemmatizerClient talks to the morphological-analyzer collaborator.
type LemmatizerClient struct {
	http *httpClient
}

// NewLemmatizerClient creates a lemmatizer client.
func NewLemmatizerClient(cfg config.CollaboratorConfig) *LemmatizerClient {
	return &LemmatizerClient{http: newHTTPClient("lemmatizer", cfg)}
}

// WithMetrics enables per-call counters. m may be nil.
func (c *LemmatizerClient) WithMetrics(m *metrics.Metrics) *LemmatizerClient {
	c.http.m = m
	return c
}

// Normalize returns the canonical base form of surface.
func (c *LemmatizerClient) Normalize(ctx context.Context, surface string) (string, error) {
	var resp struct {
		Normalized string `json:"normalized"`
	}
	if err := c.http.post(ctx, "/normalize", map[string]string{"surface": surface}, &resp); err != nil {
		return "", err
	}
	return resp.Normalized, nil
}

// EmbedderClient talks to the sentence-embedding collaborator.
type EmbedderClient struct {
	http *httpClient
	dim  int
}

// NewEmbedderClient creates an embedding client expecting vectors of the
// given dimension.
func NewEmbedderClient(cfg config.CollaboratorConfig, dim int) *EmbedderClient {
	return &EmbedderClient{http: newHTTPClient("embedder", cfg), dim: dim}
}

// WithMetrics enables per-call counters. m may be nil.
func (c *EmbedderClient) WithMetrics(m *metrics.Metrics) *EmbedderClient {
	c.http.m = m
	return c
}

// Embed returns one vector per input text, validating the configured
// dimension so a model swap on the collaborator side fails loudly instead
// of producing silently meaningless cosines.
func (c *EmbedderClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.http.post(ctx, "/embed", map[string][]string{"texts": texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts: %w",
			len(resp.Embeddings), len(texts), apperrors.ErrCollaboratorUnavailable)
	}
	for i, vec := range resp.Embeddings {
		if len(vec) != c.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d: %w",
				i, len(vec), c.dim, apperrors.ErrCollaboratorUnavailable)
		}
	}
	return resp.Embeddings, nil
}

// SentimentClient talks to the sentiment collaborator.
type SentimentClient struct {
	http *httpClient
}

// NewSentimentClient creates a sentiment client.
func NewSentimentClient(cfg config.CollaboratorConfig) *SentimentClient {
	return &SentimentClient{http: newHTTPClient("sentiment", cfg)}
}

// WithMetrics enables per-call counters. m may be nil.
func (c *SentimentClient) WithMetrics(m *metrics.Metrics) *SentimentClient {
	c.http.m = m
	return c
}

// Predict returns sentiment class probabilities for text.
func (c *SentimentClient) Predict(ctx context.Context, text string) (corpus.Sentiment, error) {
	var resp corpus.Sentiment
	if err := c.http.post(ctx, "/predict", map[string]string{"text": text}, &resp); err != nil {
		return corpus.Sentiment{}, err
	}
	return resp, nil
}
