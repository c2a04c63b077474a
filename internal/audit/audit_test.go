package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) error {
	s.count.Add(1)
	return nil
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) error {
	<-s.gate
	return nil
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("db down") }

type panickingSink struct{}

func (panickingSink) Emit(context.Context, Event) error { panic("boom") }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisabledDispatcherIsNilSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	if d.Dropped() != 0 || d.Failed() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherDeliversOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), NewEvent(EventLoginFailure, time.Now()))
	}
	d.Close()
	if got := sink.count.Load(); got != 5 {
		t.Fatalf("delivered %d events, want 5", got)
	}
}

func TestBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestSinkFailuresAreLoggedAndCounted(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, MultiSink{failingSink{}, panickingSink{}}, logger)
	d.Emit(context.Background(), NewEvent(EventAccountLocked, time.Now()))
	d.Close()

	if d.Failed() != 1 {
		t.Fatalf("Failed = %d, want 1", d.Failed())
	}
	if !strings.Contains(logs.String(), "audit sink") {
		t.Fatalf("expected a warning in logs, got %q", logs.String())
	}

	d = NewDispatcher(Config{Enabled: true, BufferSize: 4}, failingSink{}, logger)
	d.Emit(context.Background(), NewEvent(EventLoginFailure, time.Now()))
	d.Close()
	if d.Failed() != 1 {
		t.Fatalf("Failed = %d, want 1", d.Failed())
	}
}

func TestCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, &countingSink{}, nil)
	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	event := NewEvent(EventLoginSuccess, time.Now())
	event.PrincipalID = "u1"
	event.IP = "127.0.0.1"
	event.Success = true
	if err := sink.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"event_type":"login_success"`) || !strings.Contains(out, `"principal_id":"u1"`) {
		t.Fatalf("unexpected JSON line %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated record")
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf syncBuffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	ok := NewEvent(EventLoginSuccess, time.Now())
	ok.Success = true
	fail := NewEvent(EventLoginFailure, time.Now())
	fail.Detail = "unknown_principal"

	_ = sink.Emit(context.Background(), ok)
	_ = sink.Emit(context.Background(), fail)

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected INFO and WARN records, got %q", out)
	}
	if !strings.Contains(out, "unknown_principal") {
		t.Fatal("expected detail attribute")
	}
}

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	a := NewEvent(EventLogout, time.Now())
	b := NewEvent(EventLogout, time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamps")
	}
}
