package engine

import (
	"context"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth helpers for engine consumers.

func RandomUserAgent() string { return stealth.RandomUserAgent() }

// RetryConfigFor returns the stealth retry policy for c. FETCH_RETRIES=0 (the
// default) means every request is attempted exactly once.
func RetryConfigFor(c *Config) stealth.RetryConfig {
	rc := stealth.DefaultRetryConfig
	rc.MaxRetries = 0
	if c != nil && c.FetchRetries > 0 {
		rc.MaxRetries = c.FetchRetries
	}
	return rc
}

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}
