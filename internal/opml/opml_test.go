package opml

import (
	"reflect"
	"strings"
	"testing"

	"github.com/yomu-hq/yomu-reader/internal/domain"
)

func TestExtractFeedURLs(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="1.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="News" title="News">
      <outline type="rss" text="Example" xmlUrl="https://news.example/rss"/>
      <outline type="rss" text="Nested" xmlUrl="https://nested.example/feed.xml"/>
    </outline>
    <outline type="rss" text="Top level" xmlUrl="https://top.example/atom"/>
  </body>
</opml>`

	urls, err := ExtractFeedURLs([]byte(doc))
	if err != nil {
		t.Fatalf("ExtractFeedURLs: %v", err)
	}
	want := []string{
		"https://news.example/rss",
		"https://nested.example/feed.xml",
		"https://top.example/atom",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}
}

func TestExtractFeedURLsRejectsEmptyDocuments(t *testing.T) {
	inputs := []string{
		`<opml version="1.0"><body><outline text="group"/></body></opml>`,
		`not xml`,
	}
	for _, input := range inputs {
		if _, err := ExtractFeedURLs([]byte(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestGenerateEscapesAttributeValues(t *testing.T) {
	feeds := []domain.Feed{
		{
			Title:       `News & "Analysis" <daily>`,
			URL:         "https://news.example/rss?a=1&b=2",
			Description: "it's news",
		},
	}

	doc := Generate("My Subscriptions", feeds)

	if !strings.Contains(doc, "<title>My Subscriptions</title>") {
		t.Fatalf("missing head title in %s", doc)
	}
	if !strings.Contains(doc, `text="News &amp; &quot;Analysis&quot; &lt;daily&gt;"`) {
		t.Fatalf("title not escaped in %s", doc)
	}
	if !strings.Contains(doc, `xmlUrl="https://news.example/rss?a=1&amp;b=2"`) {
		t.Fatalf("url not escaped in %s", doc)
	}
	if !strings.Contains(doc, `description="it&#39;s news"`) {
		t.Fatalf("description not escaped in %s", doc)
	}
}

func TestGenerateRoundTripsThroughExtract(t *testing.T) {
	feeds := []domain.Feed{
		{Title: "One", URL: "https://one.example/rss"},
		{Title: "Two", URL: "https://two.example/atom"},
	}

	urls, err := ExtractFeedURLs([]byte(Generate("Export", feeds)))
	if err != nil {
		t.Fatalf("ExtractFeedURLs on generated document: %v", err)
	}
	want := []string{"https://one.example/rss", "https://two.example/atom"}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}
}
