package logging

import (
	"context"
	"testing"
	"time"
)

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Write(event Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

type gatedSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
	gated   bool
}

func (s *gatedSink) Write(event Event) error {
	if !s.gated {
		s.gated = true
		s.entered <- struct{}{}
		<-s.release
	}
	return s.recordingSink.Write(event)
}

func TestRouterForwardsAboveMinimumSeverity(t *testing.T) {
	sink := &recordingSink{}
	cfg := Config{BufferSize: 16, MinimumSeverity: SeverityInfo}
	router := NewRouter(SystemClock{}, cfg, []NamedSink{{Name: "memory", Sink: sink}})

	router.Publish(context.Background(), Event{Type: "combat.hit", Severity: SeverityInfo, Tick: 3})
	router.Publish(context.Background(), Event{Type: "combat.trace", Severity: SeverityDebug})
	router.Publish(context.Background(), Event{Severity: SeverityError})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected only the info event delivered, got %d", len(sink.events))
	}
	if sink.events[0].Type != "combat.hit" || sink.events[0].Time.IsZero() {
		t.Fatalf("delivered event incomplete: %+v", sink.events[0])
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", stats.EventsTotal)
	}
}

func TestRouterDropsInsteadOfBlocking(t *testing.T) {
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := Config{BufferSize: 1, MinimumSeverity: SeverityDebug}
	router := NewRouter(SystemClock{}, cfg, []NamedSink{{Name: "gated", Sink: sink}})

	router.Publish(context.Background(), Event{Type: "a", Severity: SeverityInfo})
	<-sink.entered

	// The dispatcher is stuck in the sink; one event fits the queue, the
	// next must be dropped rather than stalling the publisher.
	router.Publish(context.Background(), Event{Type: "b", Severity: SeverityInfo})
	router.Publish(context.Background(), Event{Type: "c", Severity: SeverityInfo})

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := router.Stats().DroppedTotal; got != 1 {
		t.Fatalf("expected exactly one dropped event, got %d", got)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected the queued events delivered, got %d", len(sink.events))
	}
}

func TestPublishAfterCloseIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	router := NewRouter(SystemClock{}, Config{BufferSize: 4}, []NamedSink{{Name: "memory", Sink: sink}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	router.Close(ctx)

	router.Publish(context.Background(), Event{Type: "late", Severity: SeverityError})
	if len(sink.events) != 0 {
		t.Fatalf("publish after close must be a no-op, got %d events", len(sink.events))
	}
}
