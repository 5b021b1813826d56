package main

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"orion_source/internal/adapters/observability"
	"orion_source/internal/adapters/orion"
	redisad "orion_source/internal/adapters/redis"
	"orion_source/internal/app"
	"orion_source/internal/shared"
	mysqlrepo "orion_source/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	caps, err := shared.LoadCaps(cfg.TruncationFile, cfg.TruncateCaps)
	if err != nil {
		log.Fatal().Err(err).Msg("truncation caps")
	}
	policy := orion.TruncationPolicy{Restricted: cfg.Restricted(), Caps: caps}

	log.Info().
		Str("endpoint", cfg.APIEndpoint).
		Bool("restricted", policy.Restricted).
		Int("enrich_concurrency", cfg.EnrichConcurrency).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := orion.New(orion.Options{
		Base:      cfg.APIEndpoint,
		Token:     cfg.Token,
		ProxyHost: cfg.ProxyHost,
		ProxyPort: cfg.ProxyPort,
		Timeout:   cfg.HTTPTimeout,
		RPS:       cfg.RPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize catalog client")
	}
	pager := orion.NewPager(client, policy)
	enricher := app.NewEnricher(pager, app.DefaultKinds, cfg.EnrichConcurrency)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cache.Close() }()

	ing := app.NewIngestionService(pager, enricher, repo, cache)
	rep, err := ing.Ingest(ctx)
	if err != nil {
		var se *app.StageError
		if errors.As(err, &se) {
			log.Fatal().Err(se.Err).Str("stage", string(se.Stage)).Int64("quarantined", rep.Quarantined).Msg("ingestion failed")
		}
		log.Fatal().Err(err).Msg("ingestion failed")
	}
	log.Info().
		Int("rentals", rep.Rentals).
		Int("duplicates", rep.Stats.Duplicates).
		Int64("quarantined", rep.Quarantined).
		Msg("ingestion completed")
}
