package status

import (
	"net/http"
	"sync"
	"time"

	"kickwatch/pkg/whttp"
)

const (
	// DefaultMaxAttempts bounds the retry loop of a single Fetch call.
	DefaultMaxAttempts = 3

	// DefaultFreshness is how long a cached record is served without a new
	// network call.
	DefaultFreshness = 12 * time.Second

	// DefaultBackoff is the delay before the second attempt; it doubles on
	// every further attempt.
	DefaultBackoff = 2 * time.Second
)

// Fetcher retrieves channel status with a single-slot cache and bounded
// retries. Safe for concurrent use.
type Fetcher struct {
	Client      *http.Client
	BaseURL     string // site root to request from; defaults to BaseURL
	MaxAttempts int
	Freshness   time.Duration
	Backoff     time.Duration
	Log         Logger

	mu       sync.Mutex
	cached   *Record
	cachedAt time.Time
}

// Logger abstracts logging so callers can plug in logrus or nothing at all.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// NewFetcher returns a Fetcher with production defaults.
func NewFetcher() *Fetcher {
	return &Fetcher{
		MaxAttempts: DefaultMaxAttempts,
		Freshness:   DefaultFreshness,
		Backoff:     DefaultBackoff,
	}
}

func (f *Fetcher) log() Logger {
	if f.Log == nil {
		return nopLogger{}
	}
	return f.Log
}

func (f *Fetcher) maxAttempts() int {
	if f.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return f.MaxAttempts
}

func (f *Fetcher) freshness() time.Duration {
	if f.Freshness <= 0 {
		return DefaultFreshness
	}
	return f.Freshness
}

func (f *Fetcher) backoff() time.Duration {
	if f.Backoff <= 0 {
		return DefaultBackoff
	}
	return f.Backoff
}

// Fetch returns the current status for a channel, or (nil, nil) when the
// channel does not exist. Transient network and parse failures are retried
// with exponential backoff and never surface as errors: when every attempt
// fails, Fetch falls back to the last cached record for the channel (stale or
// not) and only then to nil. The sole error condition is a blank identifier.
func (f *Fetcher) Fetch(channel string) (*Record, error) {
	slug, err := Normalize(channel)
	if err != nil {
		return nil, err
	}

	if rec := f.fromCache(slug); rec != nil {
		f.log().Debugf("cache hit for %s", slug)
		return rec, nil
	}

	base := f.BaseURL
	if base == "" {
		base = BaseURL
	}
	url := base + "/" + slug
	attempts := f.maxAttempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := whttp.Send(&whttp.Request{URL: url}, f.Client)
		if err == nil {
			switch {
			case res.StatusCode == http.StatusNotFound:
				f.log().Infof("channel %s not found", slug)
				return nil, nil
			case res.StatusCode == http.StatusForbidden:
				// Anti-automation block: report offline rather than failing.
				f.log().Warnf("request for %s blocked (403), reporting offline", slug)
				rec := Offline(slug)
				f.store(rec)
				return rec, nil
			case res.StatusCode >= 200 && res.StatusCode < 300:
				if rec := extract(slug, res); rec != nil {
					f.store(rec)
					return rec, nil
				}
				f.log().Warnf("attempt %d/%d for %s: could not extract status", attempt, attempts, slug)
			default:
				f.log().Warnf("attempt %d/%d for %s: status code %d", attempt, attempts, slug, res.StatusCode)
			}
		} else {
			f.log().Warnf("attempt %d/%d for %s: %v", attempt, attempts, slug, err)
		}

		if attempt < attempts {
			time.Sleep(f.backoff() << (attempt - 1))
		}
	}

	// Exhausted: prefer last-known-state over nothing.
	if rec := f.stale(slug); rec != nil {
		f.log().Warnf("all attempts for %s failed, returning last known state", slug)
		return rec, nil
	}
	return nil, nil
}

// ClearCache empties the cache slot regardless of age. Idempotent.
func (f *Fetcher) ClearCache() {
	f.mu.Lock()
	f.cached = nil
	f.cachedAt = time.Time{}
	f.mu.Unlock()
}

// fromCache returns the cached record when it matches the slug and is still
// inside the freshness window.
func (f *Fetcher) fromCache(slug string) *Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil || f.cached.Channel != slug {
		return nil
	}
	if time.Since(f.cachedAt) >= f.freshness() {
		return nil
	}
	return f.cached
}

// stale returns the cached record for the slug regardless of age.
func (f *Fetcher) stale(slug string) *Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil || f.cached.Channel != slug {
		return nil
	}
	return f.cached
}

func (f *Fetcher) store(rec *Record) {
	f.mu.Lock()
	f.cached = rec
	f.cachedAt = time.Now()
	f.mu.Unlock()
}
