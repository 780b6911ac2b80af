// Command seed resets the database to the demo dataset: the interest and
// language catalogues plus twenty users with likes and matches.
package main

import (
	"flag"
	"os"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
)

func main() {
	referenceOnly := flag.Bool("reference-only", false, "only insert tech interests and languages, keep existing users")
	flag.Parse()

	cfg := config.Load()
	logger.InitFromConfig(cfg)
	log := logger.With("component", "seed")

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if *referenceOnly {
		if err := db.SeedReferenceData(database); err != nil {
			log.Error("failed to seed reference data", "err", err)
			os.Exit(1)
		}
		log.Info("reference data seeded")
		return
	}

	if err := db.SeedTestData(database); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}
	log.Info("seeding completed", "driver", cfg.DB.Driver)
}
