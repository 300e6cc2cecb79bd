// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package ingest carries performance events from producers to the gap
// pipeline over an in-process Watermill Pub/Sub. Decoupling ingestion from
// processing keeps the API write path non-blocking: accepting an event is
// a publish, folding it into accumulators happens on the subscriber side.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
)

// metadata keys on published messages.
const (
	metaEventID   = "event_id"
	metaStudentID = "student_id"
)

// EventSink receives decoded events off the feed. Implemented by the gap
// engine.
type EventSink interface {
	IngestEvent(ctx context.Context, event gap.PerformanceEvent) (gap.MappedEvent, error)
}

// Notifier is told which student gained new evidence, so a recompute can
// be scheduled. Implemented by the recompute service.
type Notifier interface {
	MarkDirty(studentID string)
}

// Feed is the in-process performance-event bus.
type Feed struct {
	topic  string
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewFeed creates the event bus.
func NewFeed(cfg *config.IngestConfig) *Feed {
	logger := watermill.NewStdLoggerWithOut(logging.Logger(), false, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, logger)
	return &Feed{
		topic:  cfg.Topic,
		pubsub: pubsub,
		logger: logger,
	}
}

// Publish puts one performance event on the feed. Returns once the message
// is buffered; processing is asynchronous.
func (f *Feed) Publish(_ context.Context, event gap.PerformanceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaEventID, event.EventID)
	msg.Metadata.Set(metaStudentID, event.StudentID)

	if err := f.pubsub.Publish(f.topic, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns the raw subscription channel for the feed topic.
func (f *Feed) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return f.pubsub.Subscribe(ctx, f.topic)
}

// Close shuts the bus down; pending messages are dropped.
func (f *Feed) Close() error {
	return f.pubsub.Close()
}

// Handler decodes feed messages and drives them through the gap pipeline.
type Handler struct {
	sink     EventSink
	notifier Notifier
}

// NewHandler creates a feed handler. notifier may be nil.
func NewHandler(sink EventSink, notifier Notifier) *Handler {
	return &Handler{sink: sink, notifier: notifier}
}

// Handle processes one feed message. Duplicate events are dropped quietly;
// they are an expected effect of at-least-once delivery. Any other failure
// is returned so the router can retry or park the message.
func (h *Handler) Handle(msg *message.Message) error {
	var event gap.PerformanceEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Malformed payloads can never succeed; log and drop.
		logging.Error().Err(err).Str("message_uuid", msg.UUID).
			Msg("Undecodable event dropped")
		return nil
	}

	if _, err := h.sink.IngestEvent(msg.Context(), event); err != nil {
		if errors.Is(err, gap.ErrDuplicateEvent) {
			return nil
		}
		return fmt.Errorf("ingest event %s: %w", event.EventID, err)
	}

	if h.notifier != nil {
		h.notifier.MarkDirty(event.StudentID)
	}
	return nil
}

// NewRouter builds a Watermill router with the feed handler attached.
func NewRouter(feed *Feed, handler *Handler) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, feed.logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	router.AddNoPublisherHandler(
		"gap_pipeline",
		feed.topic,
		feed.pubsub,
		handler.Handle,
	)
	return router, nil
}
