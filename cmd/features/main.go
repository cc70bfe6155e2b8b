package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keiba-feature-lab/internal/config"
	"keiba-feature-lab/internal/observability"
	"keiba-feature-lab/internal/pipeline"
	"keiba-feature-lab/internal/storage"
	chstore "keiba-feature-lab/internal/storage/clickhouse"
	"keiba-feature-lab/internal/storage/migrations"
	pgstore "keiba-feature-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	fromDate := flag.String("from", "", "Start of the race date range (2006-01-02, required)")
	toDate := flag.String("to", "", "End of the race date range (2006-01-02, required)")
	outPath := flag.String("out", "", "Write the TSV table to this file instead of stdout")
	persist := flag.Bool("persist", false, "Also store the feature rows in ClickHouse")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides config)")

	flag.Parse()

	// Setup logger. The table goes to stdout, so logs go to stderr.
	logger := log.New(os.Stderr, "[features] ", log.LstdFlags)

	// Validate required flags
	if *fromDate == "" || *toDate == "" {
		logger.Fatal("--from and --to are required")
	}
	from, err := time.ParseInLocation("2006-01-02", *fromDate, time.UTC)
	if err != nil {
		logger.Fatalf("parse from date: %v", err)
	}
	to, err := time.ParseInLocation("2006-01-02", *toDate, time.UTC)
	if err != nil {
		logger.Fatalf("parse to date: %v", err)
	}
	if to.Before(from) {
		logger.Fatal("--to must not be before --from")
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
	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		logger.Fatal("postgres_dsn and clickhouse_dsn are required")
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

	// Create stores
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

	var featureStore storage.FeatureStore
	if *persist {
		featureStore = chstore.NewFeatureStore(conn)
	}

	// Create and run pipeline
	p := pipeline.NewTraining(pipeline.TrainingOptions{
		RaceInfo:         pgstore.NewRaceInfoStore(pool),
		Results:          pgstore.NewRaceResultStore(pool),
		History:          chstore.NewHorseHistoryStore(conn),
		Features:         featureStore,
		Windows:          cfg.DomainWindows(),
		KeepNonFinishers: cfg.KeepNonFinishers,
		Metrics:          observability.DefaultMetrics,
	})

	logger.Printf("Building feature table for %s to %s", *fromDate, *toDate)
	res, err := p.Run(ctx, from, to)
	if err != nil {
		logger.Fatalf("training pipeline failed: %v", err)
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

	logger.Printf("Done: %d entries, %d feature rows", res.Entries, len(res.Rows))
}
