package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"vodmux/work/logger"
)

// Browser-like defaults sent on every upstream request; some catalog APIs
// refuse requests without them.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	DefaultAccept    = "application/json, text/plain, */*"
)

// HeaderSettingClient wraps http.Client to automatically set headers
type HeaderSettingClient struct {
	Client    *http.Client
	UserAgent string
}

// NewHeaderSettingClient builds the shared upstream client. Per-request
// deadlines come from contexts, so the client itself carries no overall
// timeout.
func NewHeaderSettingClient() *HeaderSettingClient {
	client := &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			DisableKeepAlives:     false,
		},
	}

	return &HeaderSettingClient{
		Client:    client,
		UserAgent: DefaultUserAgent,
	}
}

func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.setHeaders(req)
	return hsc.Client.Do(req)
}

func (hsc *HeaderSettingClient) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", hsc.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", DefaultAccept)
	}
	req.Header.Set("Connection", "keep-alive")
}

// cancelBody ties the per-attempt context to the response body so the
// deadline stays armed until the caller finishes reading.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (cb *cancelBody) Close() error {
	err := cb.ReadCloser.Close()
	cb.cancel()
	return err
}

// FetchWithTimeout performs a GET with a per-attempt timeout and retries a
// failed or timed-out attempt up to retry additional times, unconditionally
// and without backoff. A non-2xx status is not a failure here; callers must
// check resp.StatusCode themselves. The last error propagates once attempts
// are exhausted. Closing the returned body releases the attempt's deadline.
func (hsc *HeaderSettingClient) FetchWithTimeout(ctx context.Context, url string, headers map[string]string, timeout time.Duration, retry int) (*http.Response, error) {
	if retry < 0 {
		retry = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var lastErr error
	attempts := retry + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := hsc.Do(req)
		if err == nil {
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}
		cancel()

		lastErr = err
		if attempt < attempts-1 {
			logger.Warn("{client - FetchWithTimeout} Request failed, retrying (%d left): %v", attempts-1-attempt, err)
		}
	}

	return nil, lastErr
}

// FetchText fetches a URL and returns the body text with the HTTP status.
// Transport failures surface as errors; non-2xx statuses do not.
func (hsc *HeaderSettingClient) FetchText(ctx context.Context, url string, headers map[string]string, timeout time.Duration, retry int) (string, int, error) {
	resp, err := hsc.FetchWithTimeout(ctx, url, headers, timeout, retry)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}
