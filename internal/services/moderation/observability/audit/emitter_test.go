package audit

import (
	"context"
	"testing"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type fakeAuditStore struct {
	last  storage.AuditEvent
	count int
}

func (s *fakeAuditStore) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	s.last = evt
	s.count++
	return nil
}

func (s *fakeAuditStore) ListAuditEvents(ctx context.Context, punishmentID string, limit int) ([]storage.AuditEvent, error) {
	return nil, nil
}

func TestEmitterNoopWhenNil(t *testing.T) {
	var emitter *Emitter
	if err := emitter.Emit(context.Background(), storage.AuditEvent{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestEmitterNoopWhenStoreNil(t *testing.T) {
	emitter := &Emitter{}
	if err := emitter.Emit(context.Background(), storage.AuditEvent{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestEmitterAddsTimestamp(t *testing.T) {
	store := &fakeAuditStore{}
	clockTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	emitter := &Emitter{store: store, clock: func() time.Time { return clockTime }}

	if err := emitter.Emit(context.Background(), storage.AuditEvent{Action: ActionCommandApplied}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.count != 1 {
		t.Fatalf("expected 1 event, got %d", store.count)
	}
	if store.last.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	if !store.last.Timestamp.Equal(clockTime) {
		t.Fatalf("expected timestamp %v, got %v", clockTime, store.last.Timestamp)
	}
}

func TestEmitterPreservesTimestamp(t *testing.T) {
	store := &fakeAuditStore{}
	clockTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	setTime := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	emitter := &Emitter{store: store, clock: func() time.Time { return clockTime }}

	if err := emitter.Emit(context.Background(), storage.AuditEvent{Action: ActionCommandApplied, Timestamp: setTime}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.count != 1 {
		t.Fatalf("expected 1 event, got %d", store.count)
	}
	if !store.last.Timestamp.Equal(setTime) {
		t.Fatalf("expected timestamp %v, got %v", setTime, store.last.Timestamp)
	}
}

func TestEmitterUsesTimeNowWhenClockNil(t *testing.T) {
	store := &fakeAuditStore{}
	emitter := &Emitter{store: store, clock: nil}

	if err := emitter.Emit(context.Background(), storage.AuditEvent{Action: ActionCommandApplied}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.count != 1 {
		t.Fatalf("expected 1 event, got %d", store.count)
	}
	if store.last.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestEmitterDefaultsSeverity(t *testing.T) {
	store := &fakeAuditStore{}
	emitter := NewEmitter(store)

	if err := emitter.Emit(context.Background(), storage.AuditEvent{Action: ActionCommandApplied}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.last.Severity != string(SeverityInfo) {
		t.Fatalf("expected INFO severity, got %q", store.last.Severity)
	}

	if err := emitter.Emit(context.Background(), storage.AuditEvent{Action: ActionGrantRejected, Severity: string(SeverityWarn)}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.last.Severity != string(SeverityWarn) {
		t.Fatalf("expected WARN severity to survive, got %q", store.last.Severity)
	}
}

func TestEmitterCapturesTraceFromContext(t *testing.T) {
	store := &fakeAuditStore{}
	emitter := NewEmitter(store)

	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown tracer provider: %v", err)
		}
	})
	ctx, span := provider.Tracer("audit-test").Start(context.Background(), "emit")
	defer span.End()

	if err := emitter.Emit(ctx, storage.AuditEvent{Action: ActionCommandApplied}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	sc := span.SpanContext()
	if store.last.TraceID != sc.TraceID().String() {
		t.Fatalf("expected trace id %s, got %s", sc.TraceID().String(), store.last.TraceID)
	}
	if store.last.SpanID != sc.SpanID().String() {
		t.Fatalf("expected span id %s, got %s", sc.SpanID().String(), store.last.SpanID)
	}
}

func TestEmitterPreservesCallerTrace(t *testing.T) {
	store := &fakeAuditStore{}
	emitter := NewEmitter(store)

	evt := storage.AuditEvent{Action: ActionCommandApplied, TraceID: "trace-set", SpanID: "span-set"}
	if err := emitter.Emit(context.Background(), evt); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.last.TraceID != "trace-set" || store.last.SpanID != "span-set" {
		t.Fatalf("expected caller trace ids to survive, got %q/%q", store.last.TraceID, store.last.SpanID)
	}
}
