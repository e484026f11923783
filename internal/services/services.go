package services

import (
	"context"
	"net/http"
	"time"
)

// defaultTimeout applies when a client is built with a non-positive timeout.
const defaultTimeout = 10 * time.Second

// withTimeout bounds a single provider call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
