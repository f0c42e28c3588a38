package main

import (
	"context"
	"fmt"
	"log"

	flag "github.com/spf13/pflag"

	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/repository/sqlite"
	"visionserver/internal/service"
	"visionserver/internal/service/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	outputsDir := flag.String("outputs", cfg.OutputDirectory, "directory containing detection artifacts")
	dbPath := flag.String("db", cfg.DBPath, "database path")
	flag.Parse()

	if *dbPath == "" {
		log.Fatalf("No database path given")
	}

	fmt.Printf("Indexing records from %s into database %s\n", *outputsDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	quiet := logger.NewDiscard()
	store := storage.NewArtifactStore(*outputsDir, quiet)
	report, err := service.Reindex(context.Background(), store, sqlite.NewResultRepository(db), quiet)
	if err != nil {
		log.Fatalf("Reindex failed: %v", err)
	}

	fmt.Printf("✅ Inserted %d record(s)\n", report.Inserted)
	if report.Skipped > 0 {
		fmt.Printf("⏭️  Skipped %d already indexed record(s)\n", report.Skipped)
	}
	if report.Failed > 0 {
		fmt.Printf("⚠️  Failed %d record(s) (unreadable or invalid JSON)\n", report.Failed)
	}

	counts, err := sqlite.NewDetectionRepository(db).CountByClass(context.Background())
	if err == nil && len(counts) > 0 {
		fmt.Printf("\n📊 Detections per class:\n")
		for class, count := range counts {
			fmt.Printf("   - %s: %d\n", class, count)
		}
	}
}
