// Package fetch retrieves raw racing-data pages over HTTP with a disk cache.
//
// The source site is a shared resource: requests are paced by a fixed delay
// and every fetched page is cached on disk, so a re-run of a pipeline touches
// the network only for pages it has never seen.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"keiba-feature-lab/internal/observability"
)

// Fetcher retrieves raw documents by identifier.
type Fetcher interface {
	// RacePage fetches the completed-race page (result table + info block).
	RacePage(ctx context.Context, raceID string) ([]byte, error)

	// HorsePage fetches a horse's career page.
	HorsePage(ctx context.Context, horseID string) ([]byte, error)

	// RaceCardPage fetches the entry table of an upcoming race.
	RaceCardPage(ctx context.Context, raceID string) ([]byte, error)
}

// Default endpoints and pacing.
const (
	DefaultDBBaseURL   = "https://db.netkeiba.com"
	DefaultRaceBaseURL = "https://race.netkeiba.com"
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	DefaultDelay       = 1 * time.Second
)

var (
	kaisaiDateRe = regexp.MustCompile(`kaisai_date=(\d{8})`)
	raceIDRe     = regexp.MustCompile(`race_id=(\d{12})`)
)

// Options configures a Client. Zero values fall back to defaults; an empty
// CacheDir disables caching.
type Options struct {
	DBBaseURL   string
	RaceBaseURL string
	UserAgent   string
	Delay       time.Duration
	CacheDir    string
	HTTPClient  *http.Client
	Metrics     *observability.Metrics
}

// Client is an HTTP Fetcher with pacing and a disk cache.
type Client struct {
	dbBase   string
	raceBase string
	ua       string
	delay    time.Duration
	cacheDir string
	http     *http.Client
	metrics  *observability.Metrics

	mu   sync.Mutex
	last time.Time
}

// Compile-time interface check.
var _ Fetcher = (*Client)(nil)

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{
		dbBase:   opts.DBBaseURL,
		raceBase: opts.RaceBaseURL,
		ua:       opts.UserAgent,
		delay:    opts.Delay,
		cacheDir: opts.CacheDir,
		http:     opts.HTTPClient,
		metrics:  opts.Metrics,
	}
	if c.dbBase == "" {
		c.dbBase = DefaultDBBaseURL
	}
	if c.raceBase == "" {
		c.raceBase = DefaultRaceBaseURL
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.delay == 0 {
		c.delay = DefaultDelay
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// RacePage fetches the completed-race page.
func (c *Client) RacePage(ctx context.Context, raceID string) ([]byte, error) {
	return c.get(ctx, "race", fmt.Sprintf("%s/race/%s", c.dbBase, raceID), "race_"+raceID)
}

// HorsePage fetches a horse's career page.
func (c *Client) HorsePage(ctx context.Context, horseID string) ([]byte, error) {
	return c.get(ctx, "horse", fmt.Sprintf("%s/horse/%s", c.dbBase, horseID), "horse_"+horseID)
}

// RaceCardPage fetches the entry table of an upcoming race. Card pages change
// until post time and are never cached.
func (c *Client) RaceCardPage(ctx context.Context, raceID string) ([]byte, error) {
	return c.fetch(ctx, "race_card", fmt.Sprintf("%s/race/shutuba.html?race_id=%s", c.raceBase, raceID))
}

// KaisaiDates returns the yyyymmdd meeting dates of a calendar month.
func (c *Client) KaisaiDates(ctx context.Context, year, month int) ([]string, error) {
	body, err := c.fetch(ctx, "calendar", fmt.Sprintf("%s/top/calendar.html?year=%d&month=%d", c.raceBase, year, month))
	if err != nil {
		return nil, err
	}
	return uniqueMatches(kaisaiDateRe, body), nil
}

// RaceIDs returns the race ids listed for one meeting date (yyyymmdd).
func (c *Client) RaceIDs(ctx context.Context, kaisaiDate string) ([]string, error) {
	body, err := c.fetch(ctx, "race_list", fmt.Sprintf("%s/top/race_list.html?kaisai_date=%s", c.raceBase, kaisaiDate))
	if err != nil {
		return nil, err
	}
	return uniqueMatches(raceIDRe, body), nil
}

// get serves from the disk cache when possible, fetching and filling it
// otherwise.
func (c *Client) get(ctx context.Context, kind, url, cacheKey string) ([]byte, error) {
	if c.cacheDir != "" {
		if body, err := os.ReadFile(c.cachePath(cacheKey)); err == nil {
			return body, nil
		}
	}

	body, err := c.fetch(ctx, kind, url)
	if err != nil {
		return nil, err
	}

	if c.cacheDir != "" {
		if err := os.MkdirAll(c.cacheDir, 0o755); err == nil {
			// Best effort: a failed cache write must not fail the fetch.
			_ = os.WriteFile(c.cachePath(cacheKey), body, 0o644)
		}
	}
	return body, nil
}

// fetch performs one paced HTTP GET.
func (c *Client) fetch(ctx context.Context, kind, url string) ([]byte, error) {
	c.pace(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		c.record(kind, err)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
		c.record(kind, err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(kind, err)
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	c.record(kind, nil)
	return body, nil
}

// pace blocks until the configured delay since the previous request has
// passed. Serializes all requests through one client.
func (c *Client) pace(ctx context.Context) {
	c.mu.Lock()
	wait := time.Until(c.last.Add(c.delay))
	c.last = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func (c *Client) record(kind string, err error) {
	if c.metrics != nil {
		c.metrics.RecordFetch(kind, err)
	}
}

func (c *Client) cachePath(key string) string {
	return filepath.Join(c.cacheDir, key+".bin")
}

// uniqueMatches returns the first capture of every match, deduplicated in
// first-seen order.
func uniqueMatches(re *regexp.Regexp, body []byte) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range re.FindAllSubmatch(body, -1) {
		v := string(m[1])
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
