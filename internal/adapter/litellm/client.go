// Package litellm provides an HTTP client for an OpenAI-compatible chat
// completions endpoint (a LiteLLM proxy, OpenRouter or OpenAI itself) and
// the tool-calling loop that turns it into an agent's reasoning capability.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/resilience"
)

// Model represents a model offered by the endpoint.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Client talks to the chat completions API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRounds   int
	httpClient  *http.Client
	breaker     *resilience.Breaker
	metrics     *otel.Metrics
}

// NewClient creates a new chat completions client.
func NewClient(cfg config.LLM) *Client {
	rounds := cfg.MaxToolRounds
	if rounds < 1 {
		rounds = 1
	}
	return &Client{
		baseURL:     cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRounds:   rounds,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otel.HTTPTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetMetrics attaches metric instruments for tool calls.
func (c *Client) SetMetrics(m *otel.Metrics) {
	c.metrics = m
}

// ListModels returns the models the endpoint serves.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var result struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal models: %w", err)
	}
	return result.Data, nil
}

// Health reports "ok" when the endpoint answers, or the breaker state
// while it is being short-circuited.
func (c *Client) Health(ctx context.Context) string {
	if c.breaker != nil && c.breaker.State() == "open" {
		return "circuit open"
	}
	if _, err := c.ListModels(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("llm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.ExecuteContext(ctx, func(context.Context) error { return call() }); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
