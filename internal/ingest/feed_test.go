// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/gap"
)

// recordingSink captures ingested events and can simulate failures.
type recordingSink struct {
	mu     sync.Mutex
	events []gap.PerformanceEvent
	err    error
}

func (s *recordingSink) IngestEvent(_ context.Context, event gap.PerformanceEvent) (gap.MappedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return gap.MappedEvent{}, s.err
	}
	s.events = append(s.events, event)
	return gap.MappedEvent{EventID: event.EventID, StudentID: event.StudentID}, nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// recordingNotifier captures dirty-student notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	students []string
}

func (n *recordingNotifier) MarkDirty(studentID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.students = append(n.students, studentID)
}

func feedEvent(id, student string) gap.PerformanceEvent {
	return gap.PerformanceEvent{
		EventID:   id,
		StudentID: student,
		Kind:      gap.EventQuiz,
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Items:     []gap.ItemOutcome{{ItemID: "q1", Quality: 0.5}},
	}
}

func eventMessage(t *testing.T, event gap.PerformanceEvent) *message.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage("m1", payload)
}

func TestHandler_Handle(t *testing.T) {
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	h := NewHandler(sink, notifier)

	if err := h.Handle(eventMessage(t, feedEvent("e1", "s1"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if sink.count() != 1 {
		t.Errorf("ingested events = %d, want 1", sink.count())
	}
	if len(notifier.students) != 1 || notifier.students[0] != "s1" {
		t.Errorf("notifications = %v, want [s1]", notifier.students)
	}
}

func TestHandler_DuplicateDroppedQuietly(t *testing.T) {
	sink := &recordingSink{err: gap.ErrDuplicateEvent}
	notifier := &recordingNotifier{}
	h := NewHandler(sink, notifier)

	if err := h.Handle(eventMessage(t, feedEvent("e1", "s1"))); err != nil {
		t.Errorf("Handle(duplicate) error = %v, want nil", err)
	}
	if len(notifier.students) != 0 {
		t.Errorf("duplicate triggered notification: %v", notifier.students)
	}
}

func TestHandler_TransientErrorPropagates(t *testing.T) {
	sink := &recordingSink{err: errors.New("store unavailable")}
	h := NewHandler(sink, nil)

	if err := h.Handle(eventMessage(t, feedEvent("e1", "s1"))); err == nil {
		t.Error("Handle() error = nil, want store failure for retry")
	}
}

func TestHandler_MalformedPayloadDropped(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler(sink, nil)

	msg := message.NewMessage("m1", []byte("{not json"))
	if err := h.Handle(msg); err != nil {
		t.Errorf("Handle(malformed) error = %v, want nil drop", err)
	}
	if sink.count() != 0 {
		t.Errorf("malformed payload reached the sink")
	}
}

func TestFeed_PublishSubscribe(t *testing.T) {
	feed := NewFeed(&config.IngestConfig{Topic: "performance.events", BufferSize: 8})
	defer func() {
		if err := feed.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	event := feedEvent("e1", "s1")
	if err := feed.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		var got gap.PerformanceEvent
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.EventID != "e1" || got.StudentID != "s1" {
			t.Errorf("received event = %+v", got)
		}
		if msg.Metadata.Get(metaEventID) != "e1" {
			t.Errorf("metadata event_id = %q, want e1", msg.Metadata.Get(metaEventID))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}
