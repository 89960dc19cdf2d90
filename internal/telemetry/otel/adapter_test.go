package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), telemetry.NewEvent(telemetry.SourceMirror, "mirror.created", "ws")); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attributes(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := telemetry.NewEvent(telemetry.SourceMirror, "mirror.modified", "ws1")
	event.User = "alice"
	event.Organization = "itlingo"
	event.Path = "models/a.rsl"

	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	attrs := attributes(rec)
	want := map[string]string{
		"event_id": event.ID, "workspace": "ws1", "user": "alice", "organization": "itlingo",
		"event_type": "mirror.modified", "source": "mirror", "path": "models/a.rsl",
	}
	for k, v := range want {
		if got := attrs[k].AsString(); got != v {
			t.Errorf("attr %q = %q, want %q", k, got, v)
		}
	}
	if !attrs["ok"].AsBool() {
		t.Error("ok attribute should be true")
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	if rec.EventName() != "mirror.modified" {
		t.Errorf("event name = %q", rec.EventName())
	}
	if !rec.Timestamp().Equal(event.CreatedAt) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), event.CreatedAt)
	}
}

func TestEmit_FailedEvent(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := telemetry.NewEvent(telemetry.SourceMirror, "mirror.created", "ws1").Fail(errors.New("db down"))

	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if rec.Severity() != otellog.SeverityError {
		t.Errorf("severity = %v, want error", rec.Severity())
	}
	if rec.Body().AsString() != "db down" {
		t.Errorf("body = %q, want error text", rec.Body().AsString())
	}
	if attributes(rec)["ok"].AsBool() {
		t.Error("ok attribute should be false")
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	event := &telemetry.Event{EventType: "ping", OK: true}

	before := time.Now().UTC()
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	attrs := attributes(rec)
	for _, k := range []string{"workspace", "user", "organization", "path"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("attr %q should be omitted", k)
		}
	}
	if rec.Timestamp().Before(before) {
		t.Errorf("zero CreatedAt should use current time, got %v", rec.Timestamp())
	}
	if !rec.Body().Empty() {
		t.Error("body should be empty for successful events")
	}
}
