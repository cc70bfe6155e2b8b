package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
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
	raceID := flag.String("race-id", "", "Race id to predict (required)")
	outPath := flag.String("out", "", "Write the TSV table to this file instead of stdout")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (every career page is fetched)")

	flag.Parse()

	// Setup logger. The table goes to stdout, so logs go to stderr.
	logger := log.New(os.Stderr, "[predict] ", log.LstdFlags)

	// Validate required flags
	if *raceID == "" {
		logger.Fatal("--race-id is required")
	}

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
	fetcher := fetch.NewClient(fetch.Options{
		DBBaseURL:   cfg.Fetch.DBBaseURL,
		RaceBaseURL: cfg.Fetch.RaceBaseURL,
		UserAgent:   cfg.Fetch.UserAgent,
		Delay:       cfg.Fetch.Delay(),
		CacheDir:    cfg.Fetch.CacheDir,
		Metrics:     observability.DefaultMetrics,
	})

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
	p := pipeline.NewPrediction(pipeline.PredictionOptions{
		Fetcher:          fetcher,
		Extractor:        extract.New(codec.New()),
		RaceInfo:         raceInfoStore,
		Results:          resultStore,
		History:          historyStore,
		Windows:          cfg.DomainWindows(),
		KeepNonFinishers: cfg.KeepNonFinishers,
		Workers:          cfg.Fetch.Workers,
		Metrics:          observability.DefaultMetrics,
	})

	logger.Printf("Building live feature table for race %s", *raceID)
	res, err := p.Run(ctx, *raceID)
	if err != nil {
		logger.Fatalf("prediction pipeline failed: %v", err)
	}

	// Write the table
	table := res.TSV()
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(table), 0o644); err != nil {
			logger.Fatalf("write %s: %v", *outPath, err)
		}
		logger.Printf("Wrote %s", *outPath)
	} else {
		fmt.Print(table)
	}

	logger.Printf("Done: %d runners", len(res.Rows))
}
