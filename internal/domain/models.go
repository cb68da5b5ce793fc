package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id derivation
	"encoding/hex"
	"time"
)

// Domain holds the canonical reader models shared across packages.

// Feed is one subscribed syndication source. ID is derived from the feed
// URL and never changes after discovery; URL is the natural key for
// duplicate detection across the subscription list.
type Feed struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	LastFetched *time.Time `json:"lastFetched,omitempty"`
	IsActive    bool       `json:"isActive"`
}

// Article is one normalized feed entry. PublishedAt is always resolved,
// even when the source document omits a date.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	FeedID      string    `json:"feedId"`
	FeedTitle   string    `json:"feedTitle"`
}

// FeedID derives the stable feed identity from its URL.
func FeedID(feedURL string) string {
	return hashKey(feedURL)
}

// ArticleID derives a stable article identity from the owning feed URL and
// the entry link. Entries without a link fall back to title + timestamp so
// the identity stays deterministic across fetches.
func ArticleID(feedURL, link, title string, publishedAt time.Time) string {
	if link != "" {
		return hashKey(feedURL + "\n" + link)
	}
	return hashKey(feedURL + "\n" + title + "\n" + publishedAt.UTC().Format(time.RFC3339))
}

func hashKey(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
