package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yomu-hq/yomu-reader/internal/domain"
	"github.com/yomu-hq/yomu-reader/internal/logger"
	"github.com/yomu-hq/yomu-reader/pkg/httpclient"
)

// Package enrich fetches article pages and fills in metadata the feed
// itself did not carry: a missing description and the Open Graph image.
// Enrichment is best-effort; a page that cannot be fetched or parsed
// leaves its article untouched.

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	defaultDelay     = 500 * time.Millisecond
	defaultTimeout   = 15 * time.Second
)

// Enricher fetches article pages and extracts OG metadata.
type Enricher struct {
	client httpclient.Client
	log    logger.Logger
	delay  time.Duration
}

// New constructs an enricher with the provided HTTP client (or default).
func New(client httpclient.Client, log logger.Logger) *Enricher {
	if client == nil {
		client = httpclient.New(defaultTimeout)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Enricher{client: client, log: log, delay: defaultDelay}
}

// Enrich iterates articles, fetching each page (with throttling) and
// merging page metadata into empty fields.
func (e *Enricher) Enrich(ctx context.Context, articles []domain.Article) []domain.Article {
	out := append([]domain.Article(nil), articles...)

	for i, art := range articles {
		select {
		case <-ctx.Done():
			return out
		default:
		}

		if art.Link == "" {
			continue
		}

		enriched, err := e.fetchAndMerge(ctx, art)
		if err != nil {
			e.log.WarnObj("article metadata fetch failed", "metadata_error", map[string]any{
				"link":  art.Link,
				"error": err.Error(),
			})
			continue
		}
		out[i] = enriched

		if e.delay > 0 && i < len(articles)-1 {
			timer := time.NewTimer(e.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out
			case <-timer.C:
			}
		}
	}

	return out
}

func (e *Enricher) fetchAndMerge(ctx context.Context, art domain.Article) (domain.Article, error) {
	resp, err := e.client.Get(ctx, art.Link, nil)
	if err != nil {
		return art, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return art, fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	meta, err := parseMeta(body)
	if err != nil {
		return art, err
	}

	if art.Description == "" && meta.Description != "" {
		art.Description = meta.Description
	}
	if meta.ImageURL != "" {
		art.ImageURL = meta.ImageURL
	}
	return art, nil
}

type pageMeta struct {
	Description string
	ImageURL    string
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	pm := pageMeta{ImageURL: extract(`meta[property="og:image"]`)}
	pm.Description = extract(`meta[property="og:description"]`)
	if pm.Description == "" {
		pm.Description = extract(`meta[name="description"]`)
	}
	return pm, nil
}
