/*
kbmigrate applies the engine's embedded schema (C15) against a
Postgres database.

Usage:

	go run cmd/kbmigrate/main.go [flags]

Flags:

	-dsn string
	    PostgreSQL connection string (required, or POSTGRES_CONNECTION_STRING env)
	-embedding-dimensions int
	    Width of the chunk_vectors embedding column (required, or EMBEDDING_DIMENSIONS env)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbasehq/knowledge-engine/internal/logging"
	"github.com/kbasehq/knowledge-engine/internal/migrate"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("POSTGRES_CONNECTION_STRING"), "Postgres DSN (POSTGRES_CONNECTION_STRING env)")
	dims := flag.Int("embedding-dimensions", envInt("EMBEDDING_DIMENSIONS"), "embedding vector width (EMBEDDING_DIMENSIONS env)")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "error: -dsn or POSTGRES_CONNECTION_STRING required")
		os.Exit(1)
	}
	if *dims <= 0 {
		fmt.Fprintln(os.Stderr, "error: -embedding-dimensions or EMBEDDING_DIMENSIONS required")
		os.Exit(1)
	}

	log := logging.New(os.Getenv("LOG_LEVEL"), "")

	ctx := context.Background()
	if err := run(ctx, *dsn, *dims); err != nil {
		log.Error().Err(err).Msg("migration_failed")
		os.Exit(1)
	}
	log.Info().Msg("migration_applied")
}

func run(ctx context.Context, dsn string, dims int) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return migrate.Apply(ctx, pool, dims)
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
