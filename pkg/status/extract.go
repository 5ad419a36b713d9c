package status

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"kickwatch/pkg/whttp"
)

// broadcastKeys are the field names under which channel pages describe a
// running stream inside their embedded JSON blobs.
var broadcastKeys = []string{"livestream", "broadcast", "current_livestream"}

// extract runs the two-stage pipeline against a fetched document. The
// structured stage (embedded JSON) wins when it matches; the markup stage is
// only a fallback. Returns nil when the document cannot be parsed at all.
func extract(slug string, res *whttp.Response) *Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil
	}

	if rec := extractStructured(slug, doc); rec != nil {
		return rec
	}
	return extractMarkup(slug, doc, res)
}

// extractStructured scans embedded JSON script blocks for a broadcast object.
func extractStructured(slug string, doc *goquery.Document) *Record {
	var rec *Record
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Contents().Text())
		if raw == "" || !gjson.Valid(raw) {
			return true
		}
		broadcast, found := findBroadcast(gjson.Parse(raw))
		if !found {
			return true
		}

		title := strings.TrimSpace(firstString(broadcast, "session_title", "title", "name"))
		category := strings.TrimSpace(firstString(broadcast,
			"category.name", "categories.0.name", "category", "game.name"))

		rec = &Record{
			Channel:  slug,
			Title:    title,
			Category: category,
			// A broadcast object without a title is not actually live.
			Live:      title != "",
			URL:       CanonicalURL(slug),
			FetchedAt: time.Now().UTC(),
		}
		return false
	})
	return rec
}

// findBroadcast looks for a broadcast object at the top level of a JSON
// value, one level down inside another object, or inside an array element.
func findBroadcast(root gjson.Result) (gjson.Result, bool) {
	if root.IsArray() {
		for _, el := range root.Array() {
			if el.IsObject() {
				if b, ok := broadcastIn(el); ok {
					return b, true
				}
			}
		}
		return gjson.Result{}, false
	}
	if !root.IsObject() {
		return gjson.Result{}, false
	}
	if b, ok := broadcastIn(root); ok {
		return b, true
	}
	var match gjson.Result
	found := false
	root.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			if b, ok := broadcastIn(value); ok {
				match = b
				found = true
				return false
			}
		}
		return true
	})
	return match, found
}

func broadcastIn(obj gjson.Result) (gjson.Result, bool) {
	for _, key := range broadcastKeys {
		v := obj.Get(key)
		if v.Exists() {
			// A null livestream still identifies the block; it reads as an
			// offline broadcast (no title).
			return v, true
		}
	}
	return gjson.Result{}, false
}

func firstString(obj gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := obj.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// extractMarkup is the fallback when no structured block matches. Its
// liveness check (title present, body mentions "live" and not "offline") is a
// known-weak heuristic kept for compatibility with the page it targets; it
// errs toward false negatives.
func extractMarkup(slug string, doc *goquery.Document, res *whttp.Response) *Record {
	title := strings.TrimSpace(doc.Find("h1[class*='title'], h2[class*='title'], h3[class*='title']").First().Text())
	if title == "" {
		title = res.HTMLTitle
	}

	category := strings.TrimSpace(doc.Find("[class*='category'], [class*='game']").First().Text())

	bodyLower := strings.ToLower(res.Body)
	live := title != "" &&
		strings.Contains(bodyLower, "live") &&
		!strings.Contains(bodyLower, "offline")

	return &Record{
		Channel:   slug,
		Live:      live,
		Title:     title,
		Category:  category,
		URL:       CanonicalURL(slug),
		FetchedAt: time.Now().UTC(),
	}
}
