// Package a2aclient is the outbound half of the agent protocol: it fetches
// agent cards and creates tasks on remote agents over JSON-RPC.
package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/middleware"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
	"github.com/Strob0t/agentmesh/internal/resilience"
)

const (
	opFetchCard  = "fetch_card"
	opCreateTask = "create_task"

	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client talks to remote agents. One breaker per agent URL keeps a dead
// agent from being hammered while the others stay reachable.
type Client struct {
	httpClient *http.Client
	breakers   *resilience.BreakerSet
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	wrap     func(http.RoundTripper) http.RoundTripper
	breakers *resilience.BreakerSet
}

// WithTransportWrapper decorates the composite-timeout transport, for
// example with tracing.
func WithTransportWrapper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(o *options) { o.wrap = wrap }
}

// WithBreakers replaces the per-agent breaker set. Nil disables breaking.
func WithBreakers(b *resilience.BreakerSet) Option {
	return func(o *options) { o.breakers = b }
}

// NewClient builds a client from the delegation and breaker settings.
func NewClient(d config.Delegation, b config.Breaker, opts ...Option) *Client {
	o := options{breakers: resilience.NewBreakerSet(b.MaxFailures, b.Timeout)}
	for _, fn := range opts {
		fn(&o)
	}

	pool := resilience.NewPool(d.MaxConns, d.PoolTimeout)
	var rt http.RoundTripper = newTransport(timeouts{
		Overall: d.Timeout,
		Connect: d.ConnectTimeout,
		Write:   d.WriteTimeout,
	}, d.MaxConns, pool)
	if o.wrap != nil {
		rt = o.wrap(rt)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   d.Timeout,
			Transport: middleware.PropagateRequestID{Next: rt},
		},
		breakers: o.breakers,
	}
}

// FetchCard retrieves and parses the agent card served under baseURL.
// baseURL must already be normalized.
func (c *Client) FetchCard(ctx context.Context, baseURL string) (agent.Descriptor, error) {
	body, err := c.doRequest(ctx, opFetchCard, baseURL, http.MethodGet, agent.CardURL(baseURL), nil)
	if err != nil {
		return agent.Descriptor{}, err
	}
	d, err := a2a.ParseAgentCard(baseURL, body)
	if err != nil {
		return agent.Descriptor{}, domain.NewDelegationError(opFetchCard, baseURL, domain.ErrMalformedDescriptor, err)
	}
	return d, nil
}

// SendMessage creates a task on the agent at baseURL with text as the
// single user part. Transport failures are returned as delegation errors;
// once a reply body has been read the result is always non-nil.
func (c *Client) SendMessage(ctx context.Context, baseURL, text string) (*task.Result, error) {
	req, err := a2a.NewMessageSendRequest(text)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.doRequest(ctx, opCreateTask, baseURL, http.MethodPost, baseURL+"/", payload)
	if err != nil {
		return nil, err
	}
	return a2a.ParseTaskReply(body), nil
}

// BreakerState reports the breaker state for baseURL.
func (c *Client) BreakerState(baseURL string) string {
	b := c.breakers.For(baseURL)
	if b == nil {
		return "closed"
	}
	return b.State()
}

// doRequest runs card fetches and task sends through the same breaker of
// baseURL, so failed fetches also hold back task creation until it resets.
func (c *Client) doRequest(ctx context.Context, op, baseURL, method, target string, payload []byte) ([]byte, error) {
	var respBody []byte
	call := func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
		}
		respBody = data
		return nil
	}

	var err error
	if b := c.breakers.For(baseURL); b != nil {
		err = b.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.NewDelegationError(op, baseURL, domain.ErrUnreachableAgent, err)
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
