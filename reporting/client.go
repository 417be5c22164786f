// Package reporting publishes discovery and execution results to the
// reporting endpoint. Publishing is best-effort: a failure is wrapped and
// surfaced to the caller but never retried, and it does not affect the
// already-completed in-memory results.
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const defaultRequestTimeout = 30 * time.Second

// ReportingError wraps a transport failure while publishing a report
type ReportingError struct {
	URL string
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("failed to publish report to %s: %v", e.URL, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ReportingError) Unwrap() error {
	return e.Err
}

// Client posts JSON payloads to the reporting endpoint
type Client struct {
	httpClient *http.Client
	log        log.Logger
}

// NewClient creates a reporting client
func NewClient(logger log.Logger) *Client {
	if logger == nil {
		logger = log.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		log:        logger,
	}
}

// Post publishes a payload as JSON with a single attempt. A non-2xx
// response or transport failure is returned as a ReportingError.
func (c *Client) Post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ReportingError{URL: url, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ReportingError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ReportingError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ReportingError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	c.log.Debug("Published report", "url", url, "bytes", len(body))
	return nil
}
