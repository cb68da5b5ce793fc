package fetch

import (
	"context"
	"sync"

	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/logger"
)

// Fetcher resolves a single feed URL into a parsed feed and its
// articles. Coordinator is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (domain.Feed, []domain.Article, error)
}

// Batch fans a list of feed URLs out to a Fetcher concurrently. One bad
// URL never blocks the others: per-URL failures are logged and dropped,
// so a batch call never fails as a whole.
type Batch struct {
	fetcher Fetcher
	log     logger.Logger
}

// NewBatch builds a batch fetcher around the given single-feed fetcher.
func NewBatch(fetcher Fetcher, log logger.Logger) *Batch {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Batch{fetcher: fetcher, log: log}
}

type batchResult struct {
	feed     domain.Feed
	articles []domain.Article
	ok       bool
}

// FetchAll fetches every URL concurrently and concatenates the
// successful results. Aggregation is slot-per-URL under a mutex, so the
// output order depends only on the input order and each fetch's outcome.
func (b *Batch) FetchAll(ctx context.Context, urls []string) ([]domain.Feed, []domain.Article) {
	if len(urls) == 0 {
		return nil, nil
	}

	results := make([]batchResult, len(urls))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i, feedURL := range urls {
		wg.Add(1)
		go func(slot int, feedURL string) {
			defer wg.Done()

			parsed, articles, err := b.fetcher.Fetch(ctx, feedURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.log.ErrorObj("feed fetch failed", "fetch_error", map[string]any{
					"feed_url": feedURL,
					"error":    err.Error(),
				})
				return
			}
			results[slot] = batchResult{feed: parsed, articles: articles, ok: true}
		}(i, feedURL)
	}
	wg.Wait()

	feeds := make([]domain.Feed, 0, len(urls))
	articles := make([]domain.Article, 0)
	for _, res := range results {
		if !res.ok {
			continue
		}
		feeds = append(feeds, res.feed)
		articles = append(articles, res.articles...)
	}
	return feeds, articles
}
