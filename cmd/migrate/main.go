package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/config"
	"github.com/bigdataia/gaia-etl/internal/dbstore"
)

var timeout = flag.Duration("timeout", 2*time.Minute, "How long to wait for the schema to apply")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.User == "" || cfg.Database.Password == "" {
		log.Fatal("Error: DB_USER and DB_PASSWORD must be set.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := dbstore.New(cfg.Database, zerolog.Nop())

	log.Printf("Applying schema to database %q on %s", cfg.Database.Name, cfg.Database.Host)

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	log.Println("Schema applied")
}
