package opml

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/yomu-hq/yomu-reader/internal/domain"
)

// Package opml extracts feed URLs from OPML subscription documents and
// renders the current feed list back out as OPML. Simple templating
// glue around the core pipeline.

type opmlDocument struct {
	Body opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Children []opmlOutline `xml:"outline"`
}

// ExtractFeedURLs parses an OPML document and returns every outline's
// feed URL, walking nested outline groups in document order.
func ExtractFeedURLs(raw []byte) ([]string, error) {
	var doc opmlDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse opml: %w", err)
	}

	var urls []string
	var walk func(outlines []opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if u := strings.TrimSpace(o.XMLURL); u != "" {
				urls = append(urls, u)
			}
			walk(o.Children)
		}
	}
	walk(doc.Body.Outlines)

	if len(urls) == 0 {
		return nil, fmt.Errorf("opml document contains no feed urls")
	}
	return urls, nil
}

// Generate renders the feed list as an OPML 1.0 document.
func Generate(title string, feeds []domain.Feed) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<opml version=\"1.0\">\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <title>%s</title>\n", escapeXML(title))
	fmt.Fprintf(&b, "    <dateCreated>%s</dateCreated>\n", time.Now().UTC().Format(time.RFC1123))
	b.WriteString("  </head>\n")
	b.WriteString("  <body>\n")
	for _, feed := range feeds {
		fmt.Fprintf(&b, "  <outline text=\"%s\" title=\"%s\" type=\"rss\" xmlUrl=\"%s\" description=\"%s\"/>\n",
			escapeXML(feed.Title), escapeXML(feed.Title), escapeXML(feed.URL), escapeXML(feed.Description))
	}
	b.WriteString("  </body>\n")
	b.WriteString("</opml>")
	return b.String()
}

func escapeXML(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(text)
}
