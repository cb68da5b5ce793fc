package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/yomu-hq/yomu-reader/internal/domain"
)

// stubFetcher resolves scripted results per URL.
type stubFetcher struct {
	feeds map[string]domain.Feed
	errs  map[string]error
}

func (s *stubFetcher) Fetch(_ context.Context, feedURL string) (domain.Feed, []domain.Article, error) {
	if err, ok := s.errs[feedURL]; ok {
		return domain.Feed{}, nil, err
	}
	f := s.feeds[feedURL]
	articles := []domain.Article{
		{ID: f.ID + "-1", Title: f.Title + " story", FeedID: f.ID, FeedTitle: f.Title},
	}
	return f, articles, nil
}

func TestFetchAllToleratesPartialFailure(t *testing.T) {
	fetcher := &stubFetcher{
		feeds: map[string]domain.Feed{
			"https://a.example/rss": {ID: "a", Title: "Feed A", URL: "https://a.example/rss"},
			"https://c.example/rss": {ID: "c", Title: "Feed C", URL: "https://c.example/rss"},
		},
		errs: map[string]error{
			"https://b.example/rss": errors.New("all relays failed"),
		},
	}
	b := NewBatch(fetcher, nil)

	urls := []string{"https://a.example/rss", "https://b.example/rss", "https://c.example/rss"}
	feeds, articles := b.FetchAll(context.Background(), urls)

	if len(feeds) != 2 {
		t.Fatalf("expected 2 surviving feeds, got %d", len(feeds))
	}
	if feeds[0].ID != "a" || feeds[1].ID != "c" {
		t.Fatalf("expected input-order aggregation, got %s %s", feeds[0].ID, feeds[1].ID)
	}
	if len(articles) != 2 {
		t.Fatalf("expected articles from surviving feeds only, got %d", len(articles))
	}
	if articles[0].FeedID != "a" || articles[1].FeedID != "c" {
		t.Fatalf("unexpected article order: %+v", articles)
	}
}

func TestFetchAllOrderIsStableAcrossRuns(t *testing.T) {
	fetcher := &stubFetcher{feeds: map[string]domain.Feed{
		"https://a.example/rss": {ID: "a", Title: "Feed A"},
		"https://b.example/rss": {ID: "b", Title: "Feed B"},
		"https://c.example/rss": {ID: "c", Title: "Feed C"},
		"https://d.example/rss": {ID: "d", Title: "Feed D"},
	}}
	b := NewBatch(fetcher, nil)
	urls := []string{"https://c.example/rss", "https://a.example/rss", "https://d.example/rss", "https://b.example/rss"}

	for run := 0; run < 20; run++ {
		feeds, _ := b.FetchAll(context.Background(), urls)
		if len(feeds) != 4 {
			t.Fatalf("run %d: expected 4 feeds, got %d", run, len(feeds))
		}
		for i, want := range []string{"c", "a", "d", "b"} {
			if feeds[i].ID != want {
				t.Fatalf("run %d: expected %s at slot %d, got %s", run, want, i, feeds[i].ID)
			}
		}
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	b := NewBatch(&stubFetcher{}, nil)
	feeds, articles := b.FetchAll(context.Background(), nil)
	if feeds != nil || articles != nil {
		t.Fatalf("expected nil results for empty input, got %v %v", feeds, articles)
	}
}
