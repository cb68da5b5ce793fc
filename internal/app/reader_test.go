package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/config"
	"github.com/yomu-hq/yomu-reader/internal/dateutil"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		TodayArticleCap:     500,
		PastArticleCap:      500,
		RetentionDays:       30,
		TimezoneOffsetHours: 9,
		StorageQuotaBytes:   5 * 1024 * 1024,
		OPMLExportTitle:     "Reader Export",
		RefreshInterval:     time.Minute,
	}
}

type stubResult struct {
	feed     domain.Feed
	articles []domain.Article
	err      error
}

// stubFetcher resolves URLs from a scripted table, standing in for the
// relay coordinator.
type stubFetcher struct {
	results map[string]stubResult
}

func (s *stubFetcher) Fetch(_ context.Context, feedURL string) (domain.Feed, []domain.Article, error) {
	res, ok := s.results[feedURL]
	if !ok {
		return domain.Feed{}, nil, errors.New("all relays failed")
	}
	return res.feed, res.articles, res.err
}

func newTestReader(fetcher *stubFetcher) *Reader {
	return NewWith(testConfig(), storage.NewMemoryStore(0), fetcher, nil)
}

func feedResult(id, url string, articleIDs ...string) stubResult {
	f := domain.Feed{ID: id, Title: "Feed " + id, URL: url, IsActive: true}
	articles := make([]domain.Article, 0, len(articleIDs))
	for i, aid := range articleIDs {
		articles = append(articles, domain.Article{
			ID:          aid,
			Title:       "article " + aid,
			Link:        url + "/" + aid,
			PublishedAt: time.Now().Add(-time.Duration(i+1) * time.Hour),
			FeedID:      id,
			FeedTitle:   f.Title,
		})
	}
	return stubResult{feed: f, articles: articles}
}

func TestAddFeedRegistersAndStoresArticles(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1", "a2"),
	}}
	r := newTestReader(fetcher)

	feed, err := r.AddFeed(context.Background(), "https://a.example/rss")
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if feed.ID != "a" {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	feeds, articles, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 1 || feeds[0].URL != "https://a.example/rss" {
		t.Fatalf("unexpected feeds: %+v", feeds)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 persisted articles, got %d", len(articles))
	}
}

func TestAddFeedRejectsDuplicateURL(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1"),
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	_, err := r.AddFeed(context.Background(), "https://a.example/rss")
	if !errors.Is(err, ErrDuplicateFeed) {
		t.Fatalf("expected ErrDuplicateFeed, got %v", err)
	}
}

func TestAddFeedFailsWhenNoRelaySucceeds(t *testing.T) {
	r := newTestReader(&stubFetcher{})

	_, err := r.AddFeed(context.Background(), "https://down.example/rss")
	if !errors.Is(err, ErrNoValidFeed) {
		t.Fatalf("expected ErrNoValidFeed, got %v", err)
	}

	feeds, _, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 0 {
		t.Fatalf("failed registration must not persist a feed, got %+v", feeds)
	}
}

func TestRemoveFeedCascadesToArticles(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1", "a2"),
		"https://b.example/rss": feedResult("b", "https://b.example/rss", "b1"),
	}}
	r := newTestReader(fetcher)

	for _, url := range []string{"https://a.example/rss", "https://b.example/rss"} {
		if _, err := r.AddFeed(context.Background(), url); err != nil {
			t.Fatalf("AddFeed(%s): %v", url, err)
		}
	}

	if err := r.RemoveFeed("a"); err != nil {
		t.Fatalf("RemoveFeed: %v", err)
	}

	feeds, articles, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 1 || feeds[0].ID != "b" {
		t.Fatalf("unexpected feeds after removal: %+v", feeds)
	}
	for _, a := range articles {
		if a.FeedID == "a" {
			t.Fatalf("expected cascade to remove article %s", a.ID)
		}
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 surviving article, got %d", len(articles))
	}
}

func TestRefreshAllUpdatesMetadataButKeepsIdentity(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1"),
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	// The next fetch reports a renamed feed under a different transient id
	// and one additional article.
	refreshed := feedResult("a-refetched", "https://a.example/rss", "a1", "a2")
	refreshed.feed.Title = "Renamed Feed"
	fetcher.results["https://a.example/rss"] = refreshed

	if err := r.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	feeds, articles, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 1 {
		t.Fatalf("expected 1 feed, got %d", len(feeds))
	}
	if feeds[0].ID != "a" {
		t.Fatalf("stored feed id must survive refresh, got %s", feeds[0].ID)
	}
	if feeds[0].Title != "Renamed Feed" {
		t.Fatalf("expected refreshed title, got %q", feeds[0].Title)
	}
	if len(articles) != 2 {
		t.Fatalf("expected new article merged in, got %d", len(articles))
	}
}

func TestViewAppliesDateExclusion(t *testing.T) {
	zone := dateutil.ReferenceZone(9)
	recent := time.Now().Add(-time.Hour)
	older := time.Now().Add(-30 * time.Hour)

	result := feedResult("a", "https://a.example/rss")
	result.articles = []domain.Article{
		{ID: "recent", Title: "recent", PublishedAt: recent, FeedID: "a"},
		{ID: "older", Title: "older", PublishedAt: older, FeedID: "a"},
	}
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": result,
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	if err := r.ExcludeDate(dateutil.CivilDate(recent, zone)); err != nil {
		t.Fatalf("ExcludeDate: %v", err)
	}

	view, err := r.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view) != 1 || view[0].ID != "older" {
		t.Fatalf("expected only the older article visible, got %+v", view)
	}

	// The corpus itself is untouched.
	_, articles, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("exclusion must not mutate the corpus, got %d articles", len(articles))
	}

	if err := r.IncludeDate(dateutil.CivilDate(recent, zone)); err != nil {
		t.Fatalf("IncludeDate: %v", err)
	}
	view, err = r.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view) != 2 {
		t.Fatalf("expected full view after re-inclusion, got %d", len(view))
	}
}

func TestImportOPMLSkipsDuplicatesAndDeadFeeds(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1"),
		"https://b.example/rss": feedResult("b", "https://b.example/rss", "b1"),
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	doc := `<opml version="1.0"><body>
  <outline type="rss" xmlUrl="https://a.example/rss"/>
  <outline type="rss" xmlUrl="https://b.example/rss"/>
  <outline type="rss" xmlUrl="https://dead.example/rss"/>
</body></opml>`

	added, err := r.ImportOPML(context.Background(), []byte(doc))
	if err != nil {
		t.Fatalf("ImportOPML: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected exactly the new live feed added, got %d", added)
	}

	feeds, _, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds after import, got %d", len(feeds))
	}
}

func TestExportOPMLListsSubscriptions(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1"),
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	doc, err := r.ExportOPML()
	if err != nil {
		t.Fatalf("ExportOPML: %v", err)
	}
	if !strings.Contains(doc, "<title>Reader Export</title>") {
		t.Fatalf("missing export title in %s", doc)
	}
	if !strings.Contains(doc, `xmlUrl="https://a.example/rss"`) {
		t.Fatalf("missing subscription url in %s", doc)
	}
}

func TestClearAllAndUsage(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]stubResult{
		"https://a.example/rss": feedResult("a", "https://a.example/rss", "a1"),
	}}
	r := newTestReader(fetcher)

	if _, err := r.AddFeed(context.Background(), "https://a.example/rss"); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	usage, err := r.Usage()
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage.Used == 0 {
		t.Fatalf("expected non-zero usage after registration")
	}

	if err := r.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	feeds, articles, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(feeds) != 0 || len(articles) != 0 {
		t.Fatalf("expected empty state after clear, got %d feeds %d articles", len(feeds), len(articles))
	}
}
