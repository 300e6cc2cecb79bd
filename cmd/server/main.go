// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Pathwise server entrypoint.
//
// The server analyzes student performance events (quiz answers, code
// submissions), maintains per-concept evidence accumulators with recency
// decay, estimates gap severity and confidence against a versioned concept
// graph, and generates prerequisite-ordered learning paths from a resource
// catalog.
//
// # Architecture
//
// Initialization order matters; each step depends on the previous:
//
//  1. Configuration (koanf: defaults, YAML file, PATHWISE_* env)
//  2. Logging (zerolog, level/format from config)
//  3. DuckDB store (events, accumulators, gaps, recommendations)
//  4. Badger snapshot store (precomputed per-student results)
//  5. Concept graph, mapping table and resource catalog (YAML files)
//  6. Gap and recommendation engines
//  7. Event feed (Watermill in-process pub/sub)
//  8. Supervisor tree (suture): data, pipeline and API layers
//
// Long-running work is owned by the supervisor tree:
//
//   - data layer: snapshot garbage collection
//   - pipeline layer: feed router, debounced recompute service
//   - api layer: HTTP server (chi)
//
// The layers restart independently, so a pipeline crash never takes down
// snapshot reads.
//
// # Configuration
//
// Settings come from config.yaml (searched in the working directory and
// /etc/pathwise/, overridable with PATHWISE_CONFIG_PATH) and PATHWISE_*
// environment variables. See internal/config for the full surface.
//
// # Shutdown
//
// SIGINT or SIGTERM cancels the root context. The supervisor drains its
// services (the HTTP server gets a bounded graceful shutdown), then the
// feed, snapshot store and database are closed in that order.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pathwise/pathwise/internal/api"
	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/database"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/ingest"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/recommend"
	"github.com/pathwise/pathwise/internal/snapshot"
	"github.com/pathwise/pathwise/internal/supervisor"
	"github.com/pathwise/pathwise/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("snapshot_path", cfg.Snapshot.Path).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Pathwise")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	snaps, err := snapshot.Open(&cfg.Snapshot)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	defer func() {
		if err := snaps.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}()

	graph, err := concept.LoadGraph(cfg.Engine.GraphPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Engine.GraphPath).
			Msg("Failed to load concept graph")
	}
	logging.Info().
		Str("graph_version", graph.Version()).
		Int("concepts", graph.Len()).
		Msg("Concept graph loaded")

	mapping, thresholds, err := gap.LoadMappingTable(cfg.Engine.MappingPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Engine.MappingPath).
			Msg("Failed to load mapping table")
	}

	resources, err := recommend.LoadResources(cfg.Recommend.CatalogPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Recommend.CatalogPath).
			Msg("Failed to load resource catalog")
	}
	catalog := recommend.NewCatalog(resources)
	logging.Info().Int("resources", len(resources)).Msg("Resource catalog loaded")

	gapEngine, err := gap.NewEngine(&gap.Config{
		MinRelevance:    cfg.Engine.MinRelevance,
		HalfLife:        cfg.Engine.HalfLife,
		ConfidenceK:     cfg.Engine.ConfidenceK,
		ConfidenceFloor: cfg.Engine.ConfidenceFloor,
		TopN:            cfg.Engine.TopN,
		MaxEvidenceRefs: cfg.Engine.MaxEvidenceRefs,
	}, db, graph, mapping, thresholds, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create gap engine")
	}

	// The gap engine doubles as the corrective sink: low-rated feedback on
	// completed resources flows back in as weighted evidence.
	recEngine, err := recommend.NewEngine(&recommend.Config{
		MaxPerGap:        cfg.Recommend.MaxPerGap,
		MinTypes:         cfg.Recommend.MinTypes,
		StyleBoost:       cfg.Recommend.StyleBoost,
		TypeBoost:        cfg.Recommend.TypeBoost,
		IneffectiveBelow: cfg.Recommend.IneffectiveBelow,
		CorrectiveWeight: cfg.Recommend.CorrectiveWeight,
	}, gapEngine, db, catalog, gapEngine)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	feed := ingest.NewFeed(&cfg.Ingest)
	defer func() {
		if err := feed.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event feed")
		}
	}()

	recompute := services.NewRecomputeService(&cfg.Recompute, gapEngine, recEngine, snaps)
	recEngine.SetNotifier(recompute)
	feedHandler := ingest.NewHandler(gapEngine, recompute)

	apiHandler := api.NewHandler(feed, recompute, snaps, gapEngine, recEngine, db)
	router := api.NewRouter(apiHandler, &cfg.Server).Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewSnapshotGCService(&cfg.Snapshot, snaps))
	tree.AddPipelineService(services.NewFeedRouterService(feed, feedHandler))
	tree.AddPipelineService(recompute)
	tree.AddAPIService(services.NewHTTPService(&cfg.Server, router))

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		// Run deferred cleanup before the non-zero exit.
		stop()
		closeAll(feed, snaps, db)
		os.Exit(1)
	}

	logging.Info().Msg("Pathwise stopped")
}

// closeAll mirrors the deferred cleanup for the error exit path, where
// os.Exit would skip defers.
func closeAll(feed *ingest.Feed, snaps *snapshot.Store, db *database.DB) {
	if err := feed.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event feed")
	}
	if err := snaps.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing snapshot store")
	}
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
}
