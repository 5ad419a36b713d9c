package status

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const livePage = `<html><head><title>testchan - Kick</title></head><body>
<script type="application/json">{"livestream":{"session_title":"Speedrun Sunday","category":{"name":"Retro"}}}</script>
</body></html>`

// testFetcher returns a fetcher pointed at a local server, with a request
// counter and no real backoff delays.
func testFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *int64) {
	t.Helper()
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher()
	f.Client = srv.Client()
	f.BaseURL = srv.URL
	f.Backoff = 5 * time.Millisecond
	return f, &requests
}

func TestFetchBlankChannel(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(livePage))
	})

	for _, channel := range []string{"", "   ", "\t\n"} {
		rec, err := f.Fetch(channel)
		if err != ErrBlankChannel {
			t.Fatalf("Fetch(%q): expected ErrBlankChannel, got %v", channel, err)
		}
		if rec != nil {
			t.Fatalf("Fetch(%q): expected nil record, got %+v", channel, rec)
		}
	}
	if n := atomic.LoadInt64(requests); n != 0 {
		t.Fatalf("expected no network activity for blank channels, got %d requests", n)
	}
}

func TestFetchLiveChannel(t *testing.T) {
	f, _ := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(livePage))
	})

	rec, err := f.Fetch("  TestChan  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Channel != "testchan" {
		t.Fatalf("expected normalized channel 'testchan', got %q", rec.Channel)
	}
	if !rec.Live {
		t.Fatal("expected live=true")
	}
	if rec.Title != "Speedrun Sunday" {
		t.Fatalf("unexpected title %q", rec.Title)
	}
	if rec.Category != "Retro" {
		t.Fatalf("unexpected category %q", rec.Category)
	}
	if rec.URL != BaseURL+"/testchan" {
		t.Fatalf("unexpected URL %q", rec.URL)
	}
	if rec.FetchedAt.IsZero() {
		t.Fatal("expected FetchedAt to be set")
	}
}

func TestFetchCacheHit(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(livePage))
	})

	first, err := f.Fetch("testchan")
	if err != nil || first == nil {
		t.Fatalf("first fetch failed: rec=%v err=%v", first, err)
	}

	start := time.Now()
	second, err := f.Fetch("TESTCHAN")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Fatalf("expected the cached record, got %+v", second)
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("cache hit took %s, expected negligible time", elapsed)
	}
	if n := atomic.LoadInt64(requests); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestClearCacheForcesRefetch(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(livePage))
	})

	if _, err := f.Fetch("testchan"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	f.ClearCache()
	f.ClearCache() // idempotent
	if _, err := f.Fetch("testchan"); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if n := atomic.LoadInt64(requests); n != 2 {
		t.Fatalf("expected 2 requests after ClearCache, got %d", n)
	}
}

func TestFetchNewChannelEvictsCache(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(livePage))
	})

	if _, err := f.Fetch("alpha"); err != nil {
		t.Fatalf("fetch alpha failed: %v", err)
	}
	if _, err := f.Fetch("beta"); err != nil {
		t.Fatalf("fetch beta failed: %v", err)
	}
	// alpha's entry was evicted, so this is a fresh network call.
	if _, err := f.Fetch("alpha"); err != nil {
		t.Fatalf("refetch alpha failed: %v", err)
	}
	if n := atomic.LoadInt64(requests); n != 3 {
		t.Fatalf("expected 3 requests, got %d", n)
	}
}

func TestFetchNotFound(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rec, err := f.Fetch("ghostchan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for 404, got %+v", rec)
	}
	if n := atomic.LoadInt64(requests); n != 1 {
		t.Fatalf("404 must not be retried, got %d requests", n)
	}
}

func TestFetchForbiddenSynthesizesOffline(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	rec, err := f.Fetch("testchan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a synthetic offline record for 403")
	}
	if rec.Live || rec.Title != "" || rec.Category != "" {
		t.Fatalf("expected offline record with empty fields, got %+v", rec)
	}

	// The synthetic record is cached like any success.
	cached, err := f.Fetch("testchan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached != rec {
		t.Fatalf("expected cached offline record, got %+v", cached)
	}
	if n := atomic.LoadInt64(requests); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestFetchTransientThenSuccess(t *testing.T) {
	var attempt int64
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempt, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(livePage))
	})
	f.Backoff = 10 * time.Millisecond

	start := time.Now()
	rec, err := f.Fetch("testchan")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || !rec.Live {
		t.Fatalf("expected the successful record, got %+v", rec)
	}
	if n := atomic.LoadInt64(requests); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	// Two backoff delays: 10ms + 20ms.
	if elapsed < 30*time.Millisecond {
		t.Fatalf("expected at least two backoff delays, elapsed %s", elapsed)
	}
}

func TestFetchExhaustedFallsBackToStaleCache(t *testing.T) {
	var failing int64
	f, _ := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt64(&failing) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(livePage))
	})

	first, err := f.Fetch("testchan")
	if err != nil || first == nil {
		t.Fatalf("priming fetch failed: rec=%v err=%v", first, err)
	}

	// Expire the cache and make the server fail every attempt.
	f.Freshness = time.Nanosecond
	atomic.StoreInt64(&failing, 1)

	rec, err := f.Fetch("testchan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != first {
		t.Fatalf("expected the stale cached record, got %+v", rec)
	}
}

func TestFetchExhaustedWithoutCache(t *testing.T) {
	f, requests := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec, err := f.Fetch("testchan")
	if err != nil {
		t.Fatalf("ordinary flakiness must not surface as an error, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
	if n := atomic.LoadInt64(requests); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}
