package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		DBBaseURL:   srv.URL,
		RaceBaseURL: srv.URL,
		Delay:       time.Millisecond,
		CacheDir:    t.TempDir(),
	})
	return c, srv
}

func TestRacePage_FetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/race/202305021211" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("Missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html>race</html>"))
	}))

	ctx := context.Background()
	body, err := c.RacePage(ctx, "202305021211")
	if err != nil {
		t.Fatalf("RacePage failed: %v", err)
	}
	if string(body) != "<html>race</html>" {
		t.Errorf("Body mismatch: %q", body)
	}

	// Second call comes from the cache.
	if _, err := c.RacePage(ctx, "202305021211"); err != nil {
		t.Fatalf("Cached RacePage failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 network hit, got %d", hits.Load())
	}

	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		t.Fatalf("Read cache dir: %v", err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".bin" {
		t.Errorf("Expected one .bin cache file, got %v", entries)
	}
}

func TestRaceCardPage_NeverCached(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/race/shutuba.html" || r.URL.Query().Get("race_id") != "202305021211" {
			t.Errorf("Unexpected request %s", r.URL)
		}
		w.Write([]byte("<html>card</html>"))
	}))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.RaceCardPage(ctx, "202305021211"); err != nil {
			t.Fatalf("RaceCardPage failed: %v", err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("Card pages must not be cached, got %d hits", hits.Load())
	}
}

func TestFetch_NonOKStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	if _, err := c.HorsePage(context.Background(), "2019104567"); err == nil {
		t.Fatal("Expected error for 404 response")
	}
}

func TestKaisaiDatesAndRaceIDs(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/top/calendar.html":
			w.Write([]byte(`<a href="../top/race_list.html?kaisai_date=20230514">14</a>
				<a href="race_list.html?kaisai_date=20230521">21</a>
				<a href="race_list.html?kaisai_date=20230514">dup</a>`))
		case "/top/race_list.html":
			w.Write([]byte(`<a href="../race/result.html?race_id=202305021211&rf=1">11R</a>
				<a href="../race/result.html?race_id=202305021212&rf=1">12R</a>`))
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	dates, err := c.KaisaiDates(ctx, 2023, 5)
	if err != nil {
		t.Fatalf("KaisaiDates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "20230514" || dates[1] != "20230521" {
		t.Fatalf("Dates mismatch: %v", dates)
	}

	ids, err := c.RaceIDs(ctx, "20230514")
	if err != nil {
		t.Fatalf("RaceIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "202305021211" {
		t.Fatalf("Race ids mismatch: %v", ids)
	}
}
