package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmorales/stock-indicator-service/internal/config"
	"github.com/bmorales/stock-indicator-service/internal/database"
	"github.com/bmorales/stock-indicator-service/internal/indicator"
	"github.com/bmorales/stock-indicator-service/internal/kafka"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	recomputeAll := flag.Bool("recompute-all", false, "recompute indicators for every active symbol and exit")
	cleanupMode := flag.String("cleanup-mode", "none", "indicator cleanup before recompute: none|truncate|keep-latest|keep-date")
	cleanupDate := flag.String("cleanup-date", "", "YYYY-MM-DD (used with -cleanup-mode keep-date)")
	flag.Parse()

	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	engine := indicator.NewEngine(db, db, cfg.Engine.BatchSize, cfg.Engine.Workers)

	if *recomputeAll {
		if err := runBatch(db, engine, cfg, *cleanupMode, *cleanupDate); err != nil {
			log.Fatalf("batch recompute failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic, cfg.Kafka.GroupID, engine)
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("consumer stopped: %v", err)
			cancel()
		}
	}()
	log.Println("Indicator service started, waiting for bar events")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
	case <-ctx.Done():
	}
}

// runBatch is the one-shot pipeline: optional indicator cleanup, full
// recompute across active symbols, then the hot-stock screen for the
// latest date.
func runBatch(db *database.DB, engine *indicator.Engine, cfg *config.Config, cleanupMode, cleanupDate string) error {
	ctx := context.Background()
	start := time.Now()

	switch cleanupMode {
	case "none":
	case "truncate":
		if err := db.TruncateIndicators(); err != nil {
			return err
		}
		log.Println("Truncated indicator table")
	case "keep-latest":
		deleted, err := db.KeepOnlyLatestIndicators()
		if err != nil {
			return err
		}
		log.Printf("Pruned indicators, deleted %d rows; kept latest date only", deleted)
	case "keep-date":
		d, err := time.Parse("2006-01-02", cleanupDate)
		if err != nil {
			log.Printf("Invalid -cleanup-date %q, expected YYYY-MM-DD; skipping cleanup", cleanupDate)
			break
		}
		deleted, err := db.KeepOnlyIndicatorDate(d)
		if err != nil {
			return err
		}
		log.Printf("Pruned indicators, deleted %d rows; kept %s", deleted, cleanupDate)
	default:
		log.Printf("Unknown -cleanup-mode %q, skipping cleanup", cleanupMode)
	}

	symbols, err := db.GetActiveSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		log.Println("No symbols to process")
		return nil
	}
	log.Printf("Recomputing indicators for %d symbols", len(symbols))

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
	defer producer.Close()

	totalRows, failed := 0, 0
	for _, res := range engine.RecomputeAll(ctx, symbols) {
		if res.Err != nil {
			failed++
			continue
		}
		totalRows += res.Rows
		if err := producer.PublishIndicatorsUpdated(ctx, res.Symbol, res.Rows); err != nil {
			log.Printf("failed to publish indicators-updated event for %s: %v", res.Symbol, err)
		}
	}
	log.Printf("Wrote %d indicator rows (%d symbols failed)", totalRows, failed)

	latest, err := db.GetLatestBarDate()
	if err == nil {
		minChange := decimal.NewFromFloat(cfg.Engine.HotStockMinChangePct)
		minRatio := decimal.NewFromFloat(cfg.Engine.HotStockMinVolumeRatio)
		hot, err := db.GetHotStocks(latest, minChange, minRatio)
		if err != nil {
			return err
		}
		log.Printf("Found %d hot stocks for %s", len(hot), latest.Format("2006-01-02"))
		for _, bar := range hot {
			if err := producer.PublishHotStockDetected(ctx, bar); err != nil {
				log.Printf("failed to publish hot stock event for %s: %v", bar.Symbol, err)
			}
		}
	}

	if cfg.Engine.BarRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Engine.BarRetentionDays)
		deleted, err := db.DeleteDailyBarsOlderThan(cutoff)
		if err != nil {
			log.Printf("failed to prune old bars: %v", err)
		} else if deleted > 0 {
			log.Printf("Pruned %d bars older than %s", deleted, cutoff.Format("2006-01-02"))
		}
	}

	log.Printf("Batch run completed in %.2fs", time.Since(start).Seconds())
	return nil
}
