// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package services

import (
	"context"
	"time"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/logging"
)

// GCRunner triggers value-log garbage collection on the snapshot store.
// Badger requires the application to drive GC; without it the value log
// grows without bound.
type GCRunner interface {
	RunGC()
}

// SnapshotGCService periodically runs snapshot store garbage collection.
type SnapshotGCService struct {
	cfg   *config.SnapshotConfig
	store GCRunner
}

// NewSnapshotGCService creates the GC service.
func NewSnapshotGCService(cfg *config.SnapshotConfig, store GCRunner) *SnapshotGCService {
	return &SnapshotGCService{cfg: cfg, store: store}
}

// Serve implements suture.Service.
func (s *SnapshotGCService) Serve(ctx context.Context) error {
	interval := s.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	logging.Info().Dur("interval", interval).Msg("Snapshot GC service started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Snapshot GC service stopped")
			return ctx.Err()
		case <-ticker.C:
			s.store.RunGC()
		}
	}
}
