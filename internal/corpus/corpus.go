package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/dateutil"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/logger"
	"github.com/yomu-hq/yomu-reader/internal/storage"
)

// Package corpus owns the persisted feed list and article corpus: merge
// of newly fetched articles, identity deduplication, the civil-date
// retention policy, and graceful degradation when the underlying store
// runs out of capacity. All mutation runs under a single lock so
// concurrent read-modify-write sequences never interleave.

const (
	feedsKey    = "feeds"
	articlesKey = "articles"
)

// ErrDuplicateFeed signals an AddFeed call for a URL that is already
// registered.
var ErrDuplicateFeed = errors.New("feed url already registered")

// Options tunes retention and diagnostics.
type Options struct {
	TodayCap            int
	PastCap             int
	RetentionDays       int
	TimezoneOffsetHours int
	QuotaBytes          int64
}

const (
	defaultArticleCap    = 500
	defaultRetentionDays = 30
	defaultOffsetHours   = 9 // JST
	defaultQuotaBytes    = 5 * 1024 * 1024
)

// ArticleStore persists the subscription list and article corpus into a
// key-value byte store.
type ArticleStore struct {
	mu    sync.Mutex
	store storage.Store
	log   logger.Logger

	todayCap      int
	pastCap       int
	retentionDays int
	quotaBytes    int64
	zone          *time.Location

	now func() time.Time
}

// NewArticleStore wires an ArticleStore over the given byte store.
func NewArticleStore(store storage.Store, opts Options, log logger.Logger) *ArticleStore {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.TodayCap <= 0 {
		opts.TodayCap = defaultArticleCap
	}
	if opts.PastCap <= 0 {
		opts.PastCap = defaultArticleCap
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = defaultRetentionDays
	}
	if opts.TimezoneOffsetHours == 0 {
		opts.TimezoneOffsetHours = defaultOffsetHours
	}
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = defaultQuotaBytes
	}
	return &ArticleStore{
		store:         store,
		log:           log,
		todayCap:      opts.TodayCap,
		pastCap:       opts.PastCap,
		retentionDays: opts.RetentionDays,
		quotaBytes:    opts.QuotaBytes,
		zone:          dateutil.ReferenceZone(opts.TimezoneOffsetHours),
		now:           time.Now,
	}
}

// LoadFeeds returns the persisted subscription list, deduplicated by URL
// with the first occurrence winning. When duplicates were present the
// cleaned list is re-persisted immediately.
func (s *ArticleStore) LoadFeeds() ([]domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFeedsLocked()
}

func (s *ArticleStore) loadFeedsLocked() ([]domain.Feed, error) {
	feeds, err := loadList[domain.Feed](s.store, feedsKey)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	seen := make(map[string]struct{}, len(feeds))
	unique := make([]domain.Feed, 0, len(feeds))
	for _, f := range feeds {
		if _, ok := seen[f.URL]; ok {
			continue
		}
		seen[f.URL] = struct{}{}
		unique = append(unique, f)
	}

	if len(unique) != len(feeds) {
		s.log.WarnObj("duplicate feeds detected, persisting cleaned list", "feeds_meta", map[string]any{
			"loaded": len(feeds),
			"unique": len(unique),
		})
		if err := s.saveFeedsLocked(unique); err != nil {
			return nil, err
		}
	}

	return unique, nil
}

// SaveFeeds persists the subscription list.
func (s *ArticleStore) SaveFeeds(feeds []domain.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveFeedsLocked(feeds)
}

func (s *ArticleStore) saveFeedsLocked(feeds []domain.Feed) error {
	data, err := json.Marshal(feeds)
	if err != nil {
		return fmt.Errorf("encode feeds: %w", err)
	}
	if err := s.store.Put(feedsKey, data); err != nil {
		return fmt.Errorf("save feeds: %w", err)
	}
	return nil
}

// AddFeed registers a new feed, rejecting URLs that are already present.
func (s *ArticleStore) AddFeed(feed domain.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, err := s.loadFeedsLocked()
	if err != nil {
		return err
	}
	for _, existing := range feeds {
		if existing.URL == feed.URL {
			return ErrDuplicateFeed
		}
	}
	return s.saveFeedsLocked(append(feeds, feed))
}

// MergeFeeds refreshes stored feed metadata from freshly fetched feeds,
// matched by URL. Stored IDs are immutable; only title, description, and
// the last-fetched timestamp are updated. The merged list is persisted
// and returned.
func (s *ArticleStore) MergeFeeds(fetched []domain.Feed) ([]domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, err := s.loadFeedsLocked()
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]domain.Feed, len(fetched))
	for _, f := range fetched {
		byURL[f.URL] = f
	}

	for i, stored := range feeds {
		fresh, ok := byURL[stored.URL]
		if !ok {
			continue
		}
		feeds[i].Title = fresh.Title
		feeds[i].Description = fresh.Description
		feeds[i].LastFetched = fresh.LastFetched
	}

	if err := s.saveFeedsLocked(feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// RemoveFeed deletes the feed and cascades to every article whose FeedID
// matches, as one critical section. It reports how many articles were
// removed.
func (s *ArticleStore) RemoveFeed(feedID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, err := s.loadFeedsLocked()
	if err != nil {
		return 0, err
	}
	kept := make([]domain.Feed, 0, len(feeds))
	for _, f := range feeds {
		if f.ID != feedID {
			kept = append(kept, f)
		}
	}
	if err := s.saveFeedsLocked(kept); err != nil {
		return 0, err
	}

	articles, err := s.loadArticlesLocked()
	if err != nil {
		return 0, err
	}
	keptArticles := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.FeedID != feedID {
			keptArticles = append(keptArticles, a)
		}
	}
	removed := len(articles) - len(keptArticles)
	if err := s.saveArticlesLocked(keptArticles); err != nil {
		return removed, err
	}
	return removed, nil
}

// Clear removes all persisted feed and article state unconditionally.
func (s *ArticleStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(feedsKey); err != nil {
		return fmt.Errorf("clear feeds: %w", err)
	}
	if err := s.store.Delete(articlesKey); err != nil {
		return fmt.Errorf("clear articles: %w", err)
	}
	return nil
}

// Usage reports best-effort byte accounting per persisted section and
// the percentage of the configured quota in use. Diagnostics only.
type Usage struct {
	Used       int64
	Total      int64
	Percentage int
	Breakdown  map[string]int64
}

// Usage inspects the persisted sections.
func (s *ArticleStore) Usage() (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := Usage{Total: s.quotaBytes, Breakdown: make(map[string]int64, 2)}
	for _, key := range []string{feedsKey, articlesKey} {
		size, err := s.store.Size(key)
		if err != nil {
			return Usage{}, fmt.Errorf("size of %s: %w", key, err)
		}
		usage.Breakdown[key] = size
		usage.Used += size
	}
	usage.Percentage = int(float64(usage.Used) / float64(usage.Total) * 100)
	return usage, nil
}

// loadList decodes a persisted JSON list, treating an absent key as an
// empty list.
func loadList[T any](store storage.Store, key string) ([]T, error) {
	data, err := store.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}
