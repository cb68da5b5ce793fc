package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/feed"
	"github.com/yomu-hq/yomu-reader/internal/logger"
	"github.com/yomu-hq/yomu-reader/pkg/httpclient"
	"github.com/yomu-hq/yomu-reader/pkg/relay"
)

const defaultHTTPTimeout = 15 * time.Second

// FetchError reports that every relay in the chain failed for one feed
// URL. It wraps the last underlying cause for diagnostics.
type FetchError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("all %d relays failed for %s: %v", e.Attempts, e.URL, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }

// Coordinator resolves one feed URL through the ordered relay chain,
// trying each relay in sequence until one yields a parsed feed.
type Coordinator struct {
	client httpclient.Client
	relays []relay.Relay
	log    logger.Logger
}

// NewCoordinator wires a coordinator with the given transport, relay
// chain, and logger, falling back to defaults for any nil argument.
func NewCoordinator(client httpclient.Client, relays []relay.Relay, log logger.Logger) *Coordinator {
	if client == nil {
		client = httpclient.New(defaultHTTPTimeout)
	}
	if len(relays) == 0 {
		relays = relay.Defaults()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Coordinator{client: client, relays: relays, log: log}
}

// Fetch tries each relay in order and returns the first successfully
// parsed feed. Individual relay failures are logged, not surfaced; only
// total exhaustion produces a FetchError.
func (c *Coordinator) Fetch(ctx context.Context, feedURL string) (domain.Feed, []domain.Article, error) {
	var lastErr error

	for _, rl := range c.relays {
		parsed, articles, err := c.attempt(ctx, rl, feedURL)
		if err != nil {
			lastErr = err
			c.log.WarnObj("relay attempt failed", "relay_error", map[string]any{
				"relay_id": rl.ID,
				"feed_url": feedURL,
				"error":    err.Error(),
			})
			continue
		}
		return parsed, articles, nil
	}

	return domain.Feed{}, nil, &FetchError{URL: feedURL, Attempts: len(c.relays), Last: lastErr}
}

func (c *Coordinator) attempt(ctx context.Context, rl relay.Relay, feedURL string) (domain.Feed, []domain.Article, error) {
	resp, err := c.client.Get(ctx, rl.BuildURL(feedURL), rl.Headers)
	if err != nil {
		return domain.Feed{}, nil, fmt.Errorf("relay %s request: %w", rl.ID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return domain.Feed{}, nil, fmt.Errorf("relay %s returned status %d body: %s", rl.ID, resp.StatusCode(), bodySnippet(body))
	}

	unwrapped, err := rl.Unwrap(body)
	if err != nil {
		return domain.Feed{}, nil, fmt.Errorf("relay %s unwrap: %w", rl.ID, err)
	}

	parsed, articles, err := feed.Parse(unwrapped, feedURL)
	if err != nil {
		return domain.Feed{}, nil, fmt.Errorf("relay %s parse: %w", rl.ID, err)
	}
	return parsed, articles, nil
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
