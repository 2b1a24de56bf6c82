package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// requestFunc builds a fresh request per attempt so retried bodies are not empty.
type requestFunc func(ctx context.Context) (*http.Request, error)

func (c *Client) jsonRequest(method, path string, body any) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			rd = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.cfg.APIKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}
}

// doJSON performs the request with exponential backoff. 5xx and transport
// errors are retried; 4xx responses fail immediately.
func (c *Client) doJSON(ctx context.Context, build requestFunc, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInterval
	bo.MaxElapsedTime = c.cfg.RetryMaxElapsed
	var lastErr error
	op := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("read body: status=%d: %w", resp.StatusCode, err)
			return lastErr
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status=%d body=%s", resp.StatusCode, string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("request rejected: status=%d body=%s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return backoff.Permanent(lastErr)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
