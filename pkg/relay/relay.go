package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Package relay models the ordered list of access strategies used to
// reach a feed URL. Each relay rewrites the target URL, attaches its own
// headers, and knows how to unwrap the response body before it is handed
// to the feed parser. Relays are tried in list order until one succeeds.

const (
	// FormatText means the response body is the raw feed document.
	FormatText = "text"
	// FormatJSON means the feed document is wrapped in a JSON envelope
	// under BodyField.
	FormatJSON = "json"

	urlPlaceholder = "{url}"
)

// Relay is one configured access strategy.
type Relay struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	URLTemplate    string            `json:"url_template" yaml:"url_template"`
	EncodeURL      bool              `json:"encode_url" yaml:"encode_url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ResponseFormat string            `json:"response_format" yaml:"response_format"`
	BodyField      string            `json:"body_field" yaml:"body_field"`
}

// BuildURL substitutes the target feed URL into the relay's template,
// percent-encoding it first when the relay requires that.
func (r Relay) BuildURL(target string) string {
	t := target
	if r.EncodeURL {
		t = url.QueryEscape(target)
	}
	return strings.ReplaceAll(r.URLTemplate, urlPlaceholder, t)
}

// Unwrap extracts the feed document from the response body according to
// the relay's response format.
func (r Relay) Unwrap(body []byte) ([]byte, error) {
	if r.ResponseFormat != FormatJSON {
		return body, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", r.ID, err)
	}
	raw, ok := envelope[r.BodyField]
	if !ok {
		return nil, fmt.Errorf("%s envelope is missing field %q", r.ID, r.BodyField)
	}
	var contents string
	if err := json.Unmarshal(raw, &contents); err != nil {
		return nil, fmt.Errorf("decode %s envelope field %q: %w", r.ID, r.BodyField, err)
	}
	return []byte(contents), nil
}

// Defaults returns the built-in relay chain: a local CORS relay first,
// then a public mirroring fallback that wraps the body in a JSON
// envelope.
func Defaults() []Relay {
	return []Relay{
		{
			ID:          "local",
			Name:        "Local CORS relay",
			URLTemplate: "http://localhost:8080/" + urlPlaceholder,
			Headers: map[string]string{
				"X-Requested-With": "XMLHttpRequest",
				"Origin":           "http://localhost:5173",
			},
			ResponseFormat: FormatText,
		},
		{
			ID:          "allorigins",
			Name:        "AllOrigins mirror",
			URLTemplate: "https://api.allorigins.win/get?url=" + urlPlaceholder,
			EncodeURL:   true,
			Headers: map[string]string{
				"X-Requested-With": "XMLHttpRequest",
			},
			ResponseFormat: FormatJSON,
			BodyField:      "contents",
		},
	}
}

func sanitize(r Relay) Relay {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.URLTemplate = strings.TrimSpace(r.URLTemplate)
	r.ResponseFormat = strings.TrimSpace(strings.ToLower(r.ResponseFormat))
	r.BodyField = strings.TrimSpace(r.BodyField)

	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	if r.ResponseFormat == "" {
		r.ResponseFormat = FormatText
	}
	return r
}

func validate(r Relay) error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.URLTemplate == "" {
		return fmt.Errorf("url_template is required for relay %q", r.ID)
	}
	if !strings.Contains(r.URLTemplate, urlPlaceholder) {
		return fmt.Errorf("url_template for relay %q must contain %s", r.ID, urlPlaceholder)
	}
	switch r.ResponseFormat {
	case FormatText:
	case FormatJSON:
		if r.BodyField == "" {
			return fmt.Errorf("body_field is required for json relay %q", r.ID)
		}
	default:
		return fmt.Errorf("unsupported response_format %q for relay %q", r.ResponseFormat, r.ID)
	}
	return nil
}
