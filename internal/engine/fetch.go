package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code    int
	Snippet string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Snippet)
}

// FetchText GETs rawURL and returns the response body. An empty 200 body is
// not an error; callers decide what an empty payload means.
func FetchText(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return do(ctx, http.MethodGet, rawURL, nil, headers)
}

// PostJSON POSTs payload as JSON to rawURL and returns the response body.
// A json.RawMessage or []byte payload is sent unchanged.
func PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string) ([]byte, error) {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	case []byte:
		body = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = b
	}
	h := make(map[string]string, len(headers)+1)
	h["content-type"] = "application/json"
	for k, v := range headers {
		h[k] = v
	}
	return do(ctx, http.MethodPost, rawURL, body, h)
}

func do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (data []byte, err error) {
	metrics.FetchRequests.Add(1)
	defer func() {
		if err != nil {
			metrics.FetchErrors.Add(1)
		}
	}()

	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	if err := upstream.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	if bc := cfg.BrowserClient; bc != nil {
		h := ChromeHeaders()
		for k, v := range headers {
			h[k] = v
		}
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		data, _, status, err := bc.Do(method, rawURL, h, r)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
		}
		if status < 200 || status > 299 {
			return nil, &StatusError{Code: status, Snippet: TruncateRunes(string(data), 200, "...")}
		}
		return data, nil
	}

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgentChrome)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return httpClient().Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{Code: resp.StatusCode, Snippet: string(snippet)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, bodyLimit()))
}

func httpClient() *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return http.DefaultClient
}

func bodyLimit() int64 {
	if cfg.MaxBodyBytes > 0 {
		return cfg.MaxBodyBytes
	}
	return 6 * 1024 * 1024
}
