package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"marketplace-storefront/internal/config"
	"marketplace-storefront/internal/db"
	"marketplace-storefront/internal/migrate"
)

// Usage: migrate [up | down <steps> | version]
func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.Options{DSN: cfg.DBConnString, MaxConns: 2, ApplicationName: "storefront-migrate"})
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
		logger.Println("migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				logger.Fatalf("parse steps %q: %v", os.Args[2], err)
			}
		}
		if err := migrate.Rollback(ctx, pool, steps); err != nil {
			logger.Fatalf("rollback migrations: %v", err)
		}
		logger.Printf("rolled back %d migration(s)", steps)
	case "version":
		v, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			logger.Fatalf("read version: %v", err)
		}
		logger.Printf("schema version=%d dirty=%t", v, dirty)
	default:
		logger.Fatalf("unknown command %q (want up, down or version)", cmd)
	}
}
