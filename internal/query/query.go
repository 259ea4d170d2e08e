// Package query implements a client for a Jaeger-compatible trace query
// service. All span timestamps and durations are microsecond counts, matching
// what the backend reports.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tracelens/tracelens/internal/config"
)

var ErrTraceNotFound = fmt.Errorf("trace not found")

// KeyValue is a single span or process tag.
type KeyValue struct {
	Key   string `json:"key"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Reference links a span to its parent or a followed span.
type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// Span is a single operation within a trace. StartTime is epoch microseconds,
// Duration is microseconds.
type Span struct {
	TraceID       string      `json:"traceID"`
	SpanID        string      `json:"spanID"`
	OperationName string      `json:"operationName"`
	References    []Reference `json:"references,omitempty"`
	StartTime     int64       `json:"startTime"`
	Duration      int64       `json:"duration"`
	Tags          []KeyValue  `json:"tags,omitempty"`
	ProcessID     string      `json:"processID"`
}

// Process identifies the service that emitted a span.
type Process struct {
	ServiceName string     `json:"serviceName"`
	Tags        []KeyValue `json:"tags,omitempty"`
}

// Trace is a collection of spans sharing a trace ID.
type Trace struct {
	TraceID   string             `json:"traceID"`
	Spans     []Span             `json:"spans"`
	Processes map[string]Process `json:"processes,omitempty"`
}

// SearchParams narrows a trace search. Zero-value fields are omitted from the
// request and the backend's defaults apply.
type SearchParams struct {
	Service   string
	Operation string
	Start     time.Time
	End       time.Time
	Limit     int
}

type response[T any] struct {
	Data []T `json:"data"`
}

type Client struct {
	cfg        *config.QueryConfig
	httpClient *http.Client
	baseURL    *url.URL
}

// New creates a query client from the backend configuration.
func New(cfg *config.QueryConfig) (*Client, error) {
	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid query backend URL: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// GetServices returns the service names known to the backend.
func (c *Client) GetServices(ctx context.Context) ([]string, error) {
	var res response[string]
	if err := c.get(ctx, "/api/services", nil, &res); err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	return res.Data, nil
}

// GetOperations returns the operation names recorded for a service.
func (c *Client) GetOperations(ctx context.Context, service string) ([]string, error) {
	var res response[string]
	path := fmt.Sprintf("/api/services/%s/operations", url.PathEscape(service))
	if err := c.get(ctx, path, nil, &res); err != nil {
		return nil, fmt.Errorf("failed to get operations for %s: %w", service, err)
	}
	return res.Data, nil
}

// SearchTraces returns traces matching the given parameters.
func (c *Client) SearchTraces(ctx context.Context, params SearchParams) ([]Trace, error) {
	q := url.Values{}
	if params.Service != "" {
		q.Set("service", params.Service)
	}
	if params.Operation != "" {
		q.Set("operation", params.Operation)
	}
	if !params.Start.IsZero() {
		q.Set("start", strconv.FormatInt(params.Start.UnixMicro(), 10))
	}
	if !params.End.IsZero() {
		q.Set("end", strconv.FormatInt(params.End.UnixMicro(), 10))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var res response[Trace]
	if err := c.get(ctx, "/api/traces", q, &res); err != nil {
		return nil, fmt.Errorf("failed to search traces: %w", err)
	}
	return res.Data, nil
}

// GetTrace returns a single trace by ID.
func (c *Client) GetTrace(ctx context.Context, traceID string) (*Trace, error) {
	var res response[Trace]
	path := "/api/traces/" + url.PathEscape(traceID)
	if err := c.get(ctx, path, nil, &res); err != nil {
		return nil, fmt.Errorf("failed to get trace %s: %w", traceID, err)
	}
	if len(res.Data) == 0 {
		return nil, ErrTraceNotFound
	}
	return &res.Data[0], nil
}

// get issues a GET request. path may contain pre-escaped segments; JoinPath
// keeps them escaped in the request line instead of re-escaping the percent
// signs.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return ErrTraceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
