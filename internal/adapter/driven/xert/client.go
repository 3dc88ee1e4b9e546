// Package xert implements the XertClient and TokenExchanger ports against
// the Xert online API.
package xert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
)

const (
	defaultBaseURL = "https://www.xertonline.com/oauth"
	requestTimeout = 30 * time.Second
	userAgent      = "xertbridge/1.0"

	// maxResponseBytes bounds how much of a response body is read; the
	// largest expected payload is a 90-day activity list.
	maxResponseBytes = 8 << 20
)

// Compile-time interface satisfaction check.
var _ driven.XertClient = (*Client)(nil)

// Client implements the driven.XertClient port. The transport stack is:
//  1. httpcache (ETag-based conditional request caching)
//  2. net/http with a per-request timeout
//
// Transient failures (network, 429, 5xx) are retried once immediately;
// the poll scheduler never retries beyond that.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Client against the production Xert API.
func NewClient() *Client {
	return &Client{
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   requestTimeout,
		},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a Client with a custom http.Client and base
// URL. Intended for testing against an httptest server.
func NewClientWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
	}
}

// FetchTrainingInfo retrieves the fitness signature, status, and training
// load summary.
func (c *Client) FetchTrainingInfo(ctx context.Context, token string) (json.RawMessage, error) {
	return c.get(ctx, "/training_info", token, nil)
}

// FetchActivities retrieves the activity list bounded by the lookback window.
func (c *Client) FetchActivities(ctx context.Context, token string, lookbackDays int) (json.RawMessage, error) {
	now := time.Now().Unix()
	from := now - int64(lookbackDays)*24*3600

	query := url.Values{
		"from": {strconv.FormatInt(from, 10)},
		"to":   {strconv.FormatInt(now, 10)},
	}
	return c.get(ctx, "/activity", token, query)
}

// FetchActivityDetail retrieves the detailed record for a single activity.
func (c *Client) FetchActivityDetail(ctx context.Context, token string, path string) (json.RawMessage, error) {
	return c.get(ctx, "/activity/"+url.PathEscape(path), token, nil)
}

// get performs an authenticated GET with a single immediate retry on
// transient failures.
func (c *Client) get(ctx context.Context, path, token string, query url.Values) (json.RawMessage, error) {
	body, err := c.doGet(ctx, path, token, query)
	if err != nil {
		var apiErr *driven.APIError
		if errors.As(err, &apiErr) && apiErr.Transient() {
			slog.Debug("transient api error, retrying once", "path", path, "error", err)
			return c.doGet(ctx, path, token, query)
		}
		return nil, err
	}
	return body, nil
}

// doGet issues one authenticated GET and classifies the outcome.
func (c *Client) doGet(ctx context.Context, path, token string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &driven.APIError{Kind: driven.ErrorPermanent, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &driven.APIError{Kind: driven.ErrorTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &driven.APIError{Kind: driven.ErrorTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if !json.Valid(body) {
			return nil, &driven.APIError{Kind: driven.ErrorPermanent, StatusCode: resp.StatusCode, Err: errors.New("malformed JSON response")}
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &driven.APIError{Kind: driven.ErrorTransient, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
	default:
		// 401 lands here too: an expired token is not retryable at this
		// level, the next cycle renews through the auth manager.
		return nil, &driven.APIError{Kind: driven.ErrorPermanent, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
	}
}

// snippet truncates a response body for error messages.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
