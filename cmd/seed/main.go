// Command seed populates the development database with demo violation data.
package main

import (
	"context"
	"flag"
	"log"

	"promptguard/internal/bootstrap"
	"promptguard/internal/config"
	"promptguard/internal/seed"
)

func main() {
	users := flag.Int("users", 25, "number of distinct users to generate")
	perUser := flag.Int("per-user", 4, "max violations per repeat offender")
	daysBack := flag.Int("days", 14, "spread records over this many days")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("Refusing to seed a production database")
	}

	db, _, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.DefaultOptions()
	opts.Users = *users
	opts.ViolationsPerUser = *perUser
	opts.MaxDaysBack = *daysBack

	if err := seed.Run(context.Background(), db, opts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded violation history for %d users", opts.Users)
}
