package engine

import (
	"context"
	"log/slog"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
)

// Re-export stealth types and functions for engine consumers.
type BrowserClient = stealth.BrowserClient

var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// NewBrowserClient builds the Chrome-fingerprinted upstream client. A non-empty
// webshareKey routes requests through a Webshare proxy pool; if the pool cannot
// be created the client runs direct.
func NewBrowserClient(timeoutSec int, webshareKey string) (*BrowserClient, error) {
	opts := []stealth.ClientOption{stealth.WithTimeout(timeoutSec)}
	if webshareKey != "" {
		pool, err := proxypool.NewWebshare(webshareKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	return stealth.NewClient(opts...)
}
