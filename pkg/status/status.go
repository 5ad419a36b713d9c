// Package status fetches and normalizes the live status of a single kick.com
// channel.
package status

import (
	"errors"
	"strings"
	"time"
)

// BaseURL is the site root every canonical channel URL is derived from.
const BaseURL = "https://kick.com"

// ErrBlankChannel is returned for identifiers that are empty after trimming.
var ErrBlankChannel = errors.New("channel name must not be blank")

// Record is an immutable snapshot of one status fetch. Title and Category are
// never "missing": an unknown or offline value is the empty string. A failed
// fetch is represented by a nil *Record, never by an empty Record.
type Record struct {
	Channel   string    `json:"channel"`
	Live      bool      `json:"live"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Normalize trims and lowercases a channel identifier. All lookups, cache keys
// and URLs are built from the normalized form, so input is case-insensitive.
func Normalize(channel string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(channel))
	if slug == "" {
		return "", ErrBlankChannel
	}
	return slug, nil
}

// CanonicalURL returns the channel page URL for a normalized slug.
func CanonicalURL(slug string) string {
	return BaseURL + "/" + slug
}

// Offline builds a synthetic offline record for a normalized slug, used when
// the real state cannot be determined but a non-nil result is required.
func Offline(slug string) *Record {
	return &Record{
		Channel:   slug,
		Live:      false,
		Title:     "",
		Category:  "",
		URL:       CanonicalURL(slug),
		FetchedAt: time.Now().UTC(),
	}
}
