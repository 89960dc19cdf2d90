package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
)

// loggerName is the instrumentation scope of emitted records.
const loggerName = "itoi.workspaces"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. Failed events are recorded at error severity.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(event.EventType)
	if event.OK {
		rec.SetSeverity(otellog.SeverityInfo)
	} else {
		rec.SetSeverity(otellog.SeverityError)
		rec.SetBody(otellog.StringValue(event.Error))
	}

	addString := func(key, val string) {
		if val != "" {
			rec.AddAttributes(otellog.String(key, val))
		}
	}
	addString("event_id", event.ID)
	addString("workspace", event.Workspace)
	addString("user", event.User)
	addString("organization", event.Organization)
	addString("event_type", event.EventType)
	addString("source", event.Source)
	addString("path", event.Path)
	rec.AddAttributes(otellog.Bool("ok", event.OK))

	e.logger.Emit(ctx, rec)
	return nil
}
