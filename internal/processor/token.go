package processor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenCache holds the processor access token. A cached token is reused
// until it is within margin of its expiry, then fetched again.
type tokenCache struct {
	mu     sync.Mutex
	config clientcredentials.Config
	client *http.Client
	margin time.Duration
	now    func() time.Time
	token  *oauth2.Token
	// fetches counts token endpoint round trips.
	fetches int
}

func newTokenCache(cfg clientcredentials.Config, client *http.Client, margin time.Duration, now func() time.Time) *tokenCache {
	return &tokenCache{config: cfg, client: client, margin: margin, now: now}
}

// Token returns a usable access token, fetching a fresh one when needed.
func (c *tokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() {
		return c.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	token, err := c.config.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.fetches++
	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

func (c *tokenCache) fresh() bool {
	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	if c.token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(c.margin).Before(c.token.Expiry)
}

func (c *tokenCache) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}
