package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/domain"
)

// Package feed converts raw RSS 2.0 and Atom documents into the
// canonical Feed + Article representation. Dialect is detected from the
// document's root element.

var (
	// ErrMalformed signals XML that could not be parsed at all.
	ErrMalformed = errors.New("malformed feed document")
	// ErrUnsupportedFormat signals well-formed XML that is neither an
	// RSS 2.0 nor an Atom feed.
	ErrUnsupportedFormat = errors.New("document is not a valid RSS or Atom feed")

	defaultFeedTitle    = "Unknown Feed"
	defaultArticleTitle = "No Title"
)

// pubDateLayouts covers the RFC 2822 style dates seen in RSS pubDate
// fields plus RFC 3339 for Atom timestamps and the stricter RSS feeds
// that use it.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

// Parse normalizes a raw feed document fetched from sourceURL. Every
// returned article carries a resolved id, feed id, feed title, and
// publication time; missing dates default to now rather than failing the
// whole feed.
func Parse(raw []byte, sourceURL string) (domain.Feed, []domain.Article, error) {
	root, err := documentRoot(raw)
	if err != nil {
		return domain.Feed{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		title       string
		description string
		articles    []domain.Article
	)

	switch root {
	case "feed":
		title, description, articles, err = parseAtom(raw, sourceURL)
	case "rss":
		title, description, articles, err = parseRSS(raw, sourceURL)
	default:
		return domain.Feed{}, nil, ErrUnsupportedFormat
	}
	if err != nil {
		return domain.Feed{}, nil, err
	}

	now := time.Now()
	out := domain.Feed{
		ID:          domain.FeedID(sourceURL),
		Title:       title,
		URL:         sourceURL,
		Description: description,
		LastFetched: &now,
		IsActive:    true,
	}

	for i := range articles {
		articles[i].FeedID = out.ID
		articles[i].FeedTitle = out.Title
	}

	return out, articles, nil
}

// documentRoot validates that the document is well-formed XML and
// returns the local name of its root element.
func documentRoot(raw []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	root := ""
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok && root == "" {
			root = start.Name.Local
		}
	}
	if root == "" {
		return "", errors.New("document has no root element")
	}
	return root, nil
}

type rssDocument struct {
	Channel *rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"encoded"` // content:encoded
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author"`
	Creator     string `xml:"creator"` // dc:creator
}

func parseRSS(raw []byte, sourceURL string) (string, string, []domain.Article, error) {
	var doc rssDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Channel == nil {
		return "", "", nil, ErrUnsupportedFormat
	}

	title := strings.TrimSpace(doc.Channel.Title)
	if title == "" {
		title = defaultFeedTitle
	}
	description := strings.TrimSpace(doc.Channel.Description)

	articles := make([]domain.Article, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		articleTitle := strings.TrimSpace(item.Title)
		if articleTitle == "" {
			articleTitle = defaultArticleTitle
		}
		link := strings.TrimSpace(item.Link)
		itemDescription := strings.TrimSpace(item.Description)

		content := strings.TrimSpace(item.Encoded)
		if content == "" {
			content = itemDescription
		}

		author := strings.TrimSpace(item.Author)
		if author == "" {
			author = strings.TrimSpace(item.Creator)
		}

		publishedAt := parsePubDate(item.PubDate)

		articles = append(articles, domain.Article{
			ID:          domain.ArticleID(sourceURL, link, articleTitle, publishedAt),
			Title:       articleTitle,
			Link:        link,
			Description: itemDescription,
			Content:     content,
			PublishedAt: publishedAt,
			Author:      author,
		})
	}

	return title, description, articles, nil
}

type atomDocument struct {
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle"`
	Entries  []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Author    atomAuthor `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

func parseAtom(raw []byte, sourceURL string) (string, string, []domain.Article, error) {
	var doc atomDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = defaultFeedTitle
	}
	description := strings.TrimSpace(doc.Subtitle)

	articles := make([]domain.Article, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		entryTitle := strings.TrimSpace(entry.Title)
		if entryTitle == "" {
			entryTitle = defaultArticleTitle
		}

		// The link target lives in the href attribute, not the element
		// text.
		link := ""
		if len(entry.Links) > 0 {
			link = strings.TrimSpace(entry.Links[0].Href)
		}

		summary := strings.TrimSpace(entry.Summary)
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			content = summary
		}

		publishedAt := parsePubDate(entry.Published)
		if strings.TrimSpace(entry.Published) == "" {
			publishedAt = parsePubDate(entry.Updated)
		}

		articles = append(articles, domain.Article{
			ID:          domain.ArticleID(sourceURL, link, entryTitle, publishedAt),
			Title:       entryTitle,
			Link:        link,
			Description: summary,
			Content:     content,
			PublishedAt: publishedAt,
			Author:      strings.TrimSpace(entry.Author.Name),
		})
	}

	return title, description, articles, nil
}

// parsePubDate resolves a source timestamp, defaulting to the current
// time when the field is absent or unparseable.
func parsePubDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now()
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now()
}
