// Package analyzer holds the HTTP client used to call upstream analyzers
// and the per-analyzer adapters that translate each analyzer's own JSON
// schema into the gateway's shared verdict.Verdict shape (spec.md §4.4).
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"moderation-gateway/internal/logger"
)

// CallRequest is the wire body sent to every analyzer (spec.md §4.4/§6).
type CallRequest struct {
	Text         string   `json:"text"`
	ReturnSpans  bool     `json:"return_spans"`
	Entities     []string `json:"entities,omitempty"`
	ActionOnFail string   `json:"action_on_fail"`
}

// Client issues the single bounded-retry outbound call to one analyzer
// endpoint. A bounded, bare *retryablehttp.Client* instance is built once and
// reused across all analyzers and all requests; per-call and global
// deadlines are enforced by the context passed to Call, not by the client's
// own timeout.
type Client struct {
	http *retryablehttp.Client
}

// NewClient builds a Client whose retry policy matches spec.md §4.4 exactly:
// at most one retry, issued immediately to the same endpoint, firing only on
// transport-level errors or 5xx responses — never on 4xx and never once the
// context has already expired.
func NewClient(log *logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 0
	rc.RetryWaitMax = 0
	rc.Logger = nil // the gateway's own logger records call outcomes instead
	rc.CheckRetry = checkRetry
	rc.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return 0 }
	// Hand the last response back once retries are exhausted, so Call can
	// report its status code instead of a bare "giving up" error.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{http: rc}
}

// checkRetry is the CheckRetry policy spec.md §4.4 names: retry only on
// transport errors or 5xx status, never on a 4xx response or a context
// cancellation/deadline.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// A non-nil err here is always a transport-level failure (DNS,
		// connection refused, TLS, etc) — retryablehttp never passes a
		// context-cancellation error to CheckRetry once ctx.Err() is nil.
		return true, nil
	}
	if resp == nil {
		return false, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// Call POSTs body to url with apiKey as the X-API-Key header, bounded by
// ctx. It returns the raw response body and status code; the caller (the
// per-analyzer adapter) is responsible for interpreting them.
func (c *Client) Call(ctx context.Context, url, apiKey string, body CallRequest) (status int, respBody []byte, err error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
