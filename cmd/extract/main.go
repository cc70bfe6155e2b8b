package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"keiba-feature-lab/internal/codec"
	"keiba-feature-lab/internal/config"
	"keiba-feature-lab/internal/extract"
	"keiba-feature-lab/internal/fetch"
	"keiba-feature-lab/internal/observability"
	"keiba-feature-lab/internal/pipeline"
	"keiba-feature-lab/internal/storage"
	chstore "keiba-feature-lab/internal/storage/clickhouse"
	"keiba-feature-lab/internal/storage/memory"
	"keiba-feature-lab/internal/storage/migrations"
	pgstore "keiba-feature-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	raceIDs := flag.String("race-ids", "", "Comma-separated race ids to ingest")
	date := flag.String("date", "", "Ingest every race of one meeting date (yyyymmdd)")
	year := flag.Int("year", 0, "Ingest a whole calendar month (requires --month)")
	month := flag.Int("month", 0, "Month for --year")
	offline := flag.Bool("offline", false, "Serve pages from the cache directory only")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[extract] ", log.LstdFlags)

	// Load configuration with flag overrides
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickhouseDSN = *clickhouseDSN
	}
	if *metricsAddr == "" {
		*metricsAddr = cfg.MetricsAddr
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create fetcher
	client := fetch.NewClient(fetch.Options{
		DBBaseURL:   cfg.Fetch.DBBaseURL,
		RaceBaseURL: cfg.Fetch.RaceBaseURL,
		UserAgent:   cfg.Fetch.UserAgent,
		Delay:       cfg.Fetch.Delay(),
		CacheDir:    cfg.Fetch.CacheDir,
		Metrics:     observability.DefaultMetrics,
	})
	var fetcher fetch.Fetcher = client
	if *offline {
		fetcher = &cacheFetcher{dir: cfg.Fetch.CacheDir}
	}

	// Resolve race ids
	ids, err := resolveRaceIDs(ctx, client, *raceIDs, *date, *year, *month)
	if err != nil {
		logger.Fatalf("resolve race ids: %v", err)
	}
	if len(ids) == 0 {
		logger.Fatal("No races to ingest. Use --race-ids, --date or --year/--month")
	}
	logger.Printf("Ingesting %d races", len(ids))

	// Create stores (use interfaces)
	var raceInfoStore storage.RaceInfoStore = memory.NewRaceInfoStore()
	var resultStore storage.RaceResultStore = memory.NewRaceResultStore()
	var historyStore storage.HorseHistoryStore = memory.NewHorseHistoryStore()

	if !*useMemory {
		if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
			logger.Fatal("postgres_dsn and clickhouse_dsn are required (use --use-memory for in-memory storage)")
		}

		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run postgres migrations: %v", err)
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("run clickhouse migrations: %v", err)
		}
		defer conn.Close()

		raceInfoStore = pgstore.NewRaceInfoStore(pool)
		resultStore = pgstore.NewRaceResultStore(pool)
		historyStore = chstore.NewHorseHistoryStore(conn)
	}

	// Create and run pipeline
	p := pipeline.NewIngest(pipeline.IngestOptions{
		Fetcher:   fetcher,
		Extractor: extract.New(codec.New()),
		RaceInfo:  raceInfoStore,
		Results:   resultStore,
		History:   historyStore,
		Workers:   cfg.Fetch.Workers,
		Metrics:   observability.DefaultMetrics,
	})

	res, err := p.Run(ctx, ids)
	if err != nil {
		logger.Fatalf("ingest failed: %v", err)
	}

	// Output summary
	fmt.Printf("\n=== Ingest Summary ===\n")
	fmt.Printf("Races Ingested:   %d\n", res.RacesIngested)
	fmt.Printf("Races Skipped:    %d\n", res.RacesSkipped)
	fmt.Printf("Result Rows:      %d\n", res.ResultRows)
	fmt.Printf("Horses Ingested:  %d\n", res.HorsesIngested)
	fmt.Printf("History Rows:     %d\n", res.HistoryRows)
}

// resolveRaceIDs resolves the race ids to ingest from the flags: an explicit
// list, one meeting date, or a whole calendar month.
func resolveRaceIDs(ctx context.Context, client *fetch.Client, raceIDs, date string, year, month int) ([]string, error) {
	if raceIDs != "" {
		var out []string
		for _, id := range strings.Split(raceIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		return out, nil
	}

	var dates []string
	switch {
	case date != "":
		dates = []string{date}
	case year > 0 && month > 0:
		var err error
		dates, err = client.KaisaiDates(ctx, year, month)
		if err != nil {
			return nil, fmt.Errorf("discover meeting dates: %w", err)
		}
	default:
		return nil, nil
	}

	var out []string
	for _, d := range dates {
		ids, err := client.RaceIDs(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("discover races on %s: %w", d, err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// cacheFetcher serves pages from a fetch cache directory without touching the
// network. Card pages are never cached, so offline mode cannot serve them.
type cacheFetcher struct {
	dir string
}

// RacePage reads a cached completed-race page.
func (f *cacheFetcher) RacePage(_ context.Context, raceID string) ([]byte, error) {
	return f.read("race_" + raceID)
}

// HorsePage reads a cached horse career page.
func (f *cacheFetcher) HorsePage(_ context.Context, horseID string) ([]byte, error) {
	return f.read("horse_" + horseID)
}

// RaceCardPage always fails: cards change until post time and are not cached.
func (f *cacheFetcher) RaceCardPage(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("race cards cannot be served offline")
}

func (f *cacheFetcher) read(key string) ([]byte, error) {
	body, err := os.ReadFile(filepath.Join(f.dir, key+".bin"))
	if err != nil {
		return nil, fmt.Errorf("offline page %s: %w", key, err)
	}
	return body, nil
}

// Ensure cacheFetcher implements fetch.Fetcher
var _ fetch.Fetcher = (*cacheFetcher)(nil)
