// Package records is a client for an HL7 FHIR R4 clinical record server.
// Reads and searches go through a read-through cache; writes go straight
// to the server.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/config"
	"github.com/Strob0t/agentmesh/internal/port/cache"
)

const (
	contentType  = "application/fhir+json"
	maxBodyBytes = 4 << 20
)

// ErrInvalidResource is returned for resource types or bodies the client
// refuses to send.
var ErrInvalidResource = errors.New("invalid fhir resource")

// StatusError is a non-2xx answer from the record server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fhir server returned %d: %s", e.Code, e.Body)
}

// Client talks to the record server.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
}

// NewClient creates a record client. c may be nil to disable caching.
func NewClient(cfg config.Records, c cache.Cache, ttl time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otel.HTTPTransport(http.DefaultTransport),
		},
		cache: c,
		ttl:   ttl,
	}
}

// Read fetches one resource by type and id.
func (c *Client) Read(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	if err := checkType(resourceType); err != nil {
		return nil, err
	}
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, fmt.Errorf("%w: bad id %q", ErrInvalidResource, id)
	}
	key := resourceType + "/" + id
	return cache.Fetch(ctx, c.cache, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/"+key, nil)
	})
}

// Search runs a type-level search and returns the result Bundle.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (json.RawMessage, error) {
	if err := checkType(resourceType); err != nil {
		return nil, err
	}
	key := resourceType
	if q := params.Encode(); q != "" {
		key += "?" + q
	}
	return cache.Fetch(ctx, c.cache, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/"+key, nil)
	})
}

// Create posts a new resource. The resource type is taken from the body's
// resourceType field. The stored resource returned by the server is cached
// under its assigned id.
func (c *Client) Create(ctx context.Context, resource json.RawMessage) (json.RawMessage, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(resource, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}
	if err := checkType(head.ResourceType); err != nil {
		return nil, err
	}

	data, err := c.do(ctx, http.MethodPost, "/"+head.ResourceType, resource)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &created) == nil && created.ID != "" && c.cache != nil {
		_ = c.cache.Set(ctx, head.ResourceType+"/"+created.ID, data, c.ttl)
	}
	return data, nil
}

// Health reports "ok" when the server answers its capability statement.
func (c *Client) Health(ctx context.Context) string {
	if _, err := c.do(ctx, http.MethodGet, "/metadata", nil); err != nil {
		return "unreachable"
	}
	return "ok"
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fhir %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fhir %s %s: %w", method, path, &StatusError{Code: resp.StatusCode, Body: string(data)})
	}
	return data, nil
}

// checkType accepts FHIR resource type names: an upper-case letter
// followed by letters.
func checkType(t string) error {
	if t == "" || t[0] < 'A' || t[0] > 'Z' {
		return fmt.Errorf("%w: bad resource type %q", ErrInvalidResource, t)
	}
	for _, r := range t {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return fmt.Errorf("%w: bad resource type %q", ErrInvalidResource, t)
		}
	}
	return nil
}
