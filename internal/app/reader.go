package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/config"
	"github.com/yomu-hq/yomu-reader/internal/corpus"
	"github.com/yomu-hq/yomu-reader/internal/datefilter"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/enrich"
	"github.com/yomu-hq/yomu-reader/internal/fetch"
	"github.com/yomu-hq/yomu-reader/internal/logger"
	"github.com/yomu-hq/yomu-reader/internal/opml"
	"github.com/yomu-hq/yomu-reader/internal/storage"
	"github.com/yomu-hq/yomu-reader/pkg/httpclient"
	"github.com/yomu-hq/yomu-reader/pkg/relay"
)

// User-visible terminal failures. Everything else is recovered or
// logged inside the pipeline.
var (
	ErrDuplicateFeed = errors.New("this feed is already registered")
	ErrNoValidFeed   = errors.New("no valid feed found at this URL")
)

// Reader is the reader runtime: the only mutation surface exposed to
// presentation, plus the periodic refresh loop.
type Reader struct {
	cfg      *config.Config
	store    storage.Store
	corpus   *corpus.ArticleStore
	filter   *datefilter.Filter
	batch    *fetch.Batch
	enricher *enrich.Enricher
	log      logger.Logger
}

// New builds a reader runtime from config.
func New(cfg *config.Config, log logger.Logger) (*Reader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		QuotaBytes: cfg.StorageQuotaBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	relays, err := relay.LoadOrDefaults(cfg.RelaysFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load relays: %w", err)
	}
	log.InfoObj("relay chain loaded", "relays_meta", map[string]any{
		"count": len(relays),
	})

	client := httpclient.New(cfg.HTTPTimeout)
	coordinator := fetch.NewCoordinator(client, relays, log)

	r := NewWith(cfg, store, coordinator, log)
	if cfg.EnrichMetadata {
		r.enricher = enrich.New(client, log)
	}
	return r, nil
}

// NewWith assembles a reader over an existing store and fetcher. Used by
// New and by tests that inject fakes.
func NewWith(cfg *config.Config, store storage.Store, fetcher fetch.Fetcher, log logger.Logger) *Reader {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Reader{
		cfg:   cfg,
		store: store,
		corpus: corpus.NewArticleStore(store, corpus.Options{
			TodayCap:            cfg.TodayArticleCap,
			PastCap:             cfg.PastArticleCap,
			RetentionDays:       cfg.RetentionDays,
			TimezoneOffsetHours: cfg.TimezoneOffsetHours,
			QuotaBytes:          cfg.StorageQuotaBytes,
		}, log),
		filter: datefilter.New(store, cfg.TimezoneOffsetHours),
		batch:  fetch.NewBatch(fetcher, log),
		log:    log,
	}
}

// Close releases the underlying store.
func (r *Reader) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// AddFeed registers the feed at url, fetching and persisting its
// articles. Fails with ErrDuplicateFeed for a known URL and
// ErrNoValidFeed when no relay produced a parseable feed.
func (r *Reader) AddFeed(ctx context.Context, url string) (domain.Feed, error) {
	feeds, err := r.corpus.LoadFeeds()
	if err != nil {
		return domain.Feed{}, err
	}
	for _, f := range feeds {
		if f.URL == url {
			return domain.Feed{}, ErrDuplicateFeed
		}
	}

	fetched, articles := r.batch.FetchAll(ctx, []string{url})
	if len(fetched) == 0 {
		return domain.Feed{}, ErrNoValidFeed
	}

	feed := fetched[0]
	if err := r.corpus.AddFeed(feed); err != nil {
		if errors.Is(err, corpus.ErrDuplicateFeed) {
			return domain.Feed{}, ErrDuplicateFeed
		}
		return domain.Feed{}, err
	}
	r.log.InfoObj("feed added", "feed_meta", map[string]any{
		"title": feed.Title,
		"url":   feed.URL,
	})

	if len(articles) > 0 {
		articles = r.maybeEnrich(ctx, articles)
		if err := r.corpus.AddArticles(articles); err != nil {
			r.log.ErrorObj("article merge failed", "error", err)
		}
	}
	return feed, nil
}

// RemoveFeed deletes the feed and all its articles.
func (r *Reader) RemoveFeed(feedID string) error {
	removed, err := r.corpus.RemoveFeed(feedID)
	if err != nil {
		return err
	}
	r.log.InfoObj("feed removed", "feed_meta", map[string]any{
		"feed_id":          feedID,
		"articles_removed": removed,
	})
	return nil
}

// RefreshAll re-fetches every registered feed, merges updated feed
// metadata, and folds new articles into the corpus. Per-feed fetch
// failures are swallowed by the batch layer; only persistence failures
// surface.
func (r *Reader) RefreshAll(ctx context.Context) error {
	feeds, err := r.corpus.LoadFeeds()
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if len(feeds) == 0 {
		return nil
	}

	urls := make([]string, 0, len(feeds))
	for _, f := range feeds {
		urls = append(urls, f.URL)
	}

	fetched, articles := r.batch.FetchAll(ctx, urls)
	if _, err := r.corpus.MergeFeeds(fetched); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if len(articles) > 0 {
		articles = r.maybeEnrich(ctx, articles)
		if err := r.corpus.AddArticles(articles); err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
	}

	r.log.InfoObj("refresh completed", "refresh_meta", map[string]any{
		"feeds_requested": len(urls),
		"feeds_fetched":   len(fetched),
		"articles_seen":   len(articles),
	})
	return nil
}

// ExcludeDate adds a civil date to the exclusion set.
func (r *Reader) ExcludeDate(date string) error { return r.filter.Add(date) }

// IncludeDate removes a civil date from the exclusion set.
func (r *Reader) IncludeDate(date string) error { return r.filter.Remove(date) }

// Snapshot returns the current feed list and full article corpus.
func (r *Reader) Snapshot() ([]domain.Feed, []domain.Article, error) {
	feeds, err := r.corpus.LoadFeeds()
	if err != nil {
		return nil, nil, err
	}
	articles, err := r.corpus.LoadArticles()
	if err != nil {
		return nil, nil, err
	}
	return feeds, articles, nil
}

// View returns the article corpus with the excluded-date filter applied,
// newest first. Read-time only; the persisted corpus is untouched.
func (r *Reader) View() ([]domain.Article, error) {
	articles, err := r.corpus.LoadArticles()
	if err != nil {
		return nil, err
	}
	excluded, err := r.filter.ExcludedDates()
	if err != nil {
		return nil, err
	}
	return r.filter.Apply(articles, excluded), nil
}

// ImportOPML extracts feed URLs from an OPML document and registers the
// ones not already subscribed. Returns how many feeds were added.
func (r *Reader) ImportOPML(ctx context.Context, raw []byte) (int, error) {
	urls, err := opml.ExtractFeedURLs(raw)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, url := range urls {
		if _, err := r.AddFeed(ctx, url); err != nil {
			if errors.Is(err, ErrDuplicateFeed) || errors.Is(err, ErrNoValidFeed) {
				r.log.WarnObj("opml entry skipped", "opml_meta", map[string]any{
					"url":    url,
					"reason": err.Error(),
				})
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

// ExportOPML renders the current feed list as an OPML document.
func (r *Reader) ExportOPML() (string, error) {
	feeds, err := r.corpus.LoadFeeds()
	if err != nil {
		return "", err
	}
	return opml.Generate(r.cfg.OPMLExportTitle, feeds), nil
}

// Usage reports storage diagnostics.
func (r *Reader) Usage() (corpus.Usage, error) { return r.corpus.Usage() }

// ClearAll wipes the persisted feed and article state.
func (r *Reader) ClearAll() error { return r.corpus.Clear() }

// Run refreshes all feeds immediately and then on every tick until the
// context is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	if r == nil || r.batch == nil {
		return fmt.Errorf("reader is not initialized")
	}

	r.log.InfoObj("refresh loop starting", "loop_meta", map[string]any{
		"interval": r.cfg.RefreshInterval.String(),
	})

	if err := r.refreshOnce(ctx); err != nil {
		r.log.ErrorObj("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("refresh loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.refreshOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled refresh failed", "error", err)
			}
		}
	}
}

func (r *Reader) refreshOnce(ctx context.Context) error {
	start := time.Now()
	if err := r.RefreshAll(ctx); err != nil {
		return err
	}
	usage, err := r.Usage()
	if err != nil {
		return err
	}
	r.log.InfoObj("refresh cycle completed", "cycle_meta", map[string]any{
		"elapsed_ms":    time.Since(start).Milliseconds(),
		"storage_used":  usage.Used,
		"storage_total": usage.Total,
		"storage_pct":   usage.Percentage,
	})
	return nil
}

func (r *Reader) maybeEnrich(ctx context.Context, articles []domain.Article) []domain.Article {
	if r.enricher == nil {
		return articles
	}
	return r.enricher.Enrich(ctx, articles)
}
