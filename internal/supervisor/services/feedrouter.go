// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package services

import (
	"context"

	"github.com/pathwise/pathwise/internal/ingest"
	"github.com/pathwise/pathwise/internal/logging"
)

// FeedRouterService runs the Watermill router that drives performance
// events from the feed through the gap pipeline.
type FeedRouterService struct {
	feed    *ingest.Feed
	handler *ingest.Handler
}

// NewFeedRouterService creates the feed router service.
func NewFeedRouterService(feed *ingest.Feed, handler *ingest.Handler) *FeedRouterService {
	return &FeedRouterService{feed: feed, handler: handler}
}

// Serve implements suture.Service. The router is rebuilt on each start so
// a supervised restart gets a clean subscription.
func (s *FeedRouterService) Serve(ctx context.Context) error {
	router, err := ingest.NewRouter(s.feed, s.handler)
	if err != nil {
		return err
	}

	logging.Info().Msg("Event feed router started")
	err = router.Run(ctx)
	logging.Info().Msg("Event feed router stopped")
	return err
}
