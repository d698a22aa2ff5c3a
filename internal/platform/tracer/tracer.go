// Package tracer is the tracing seam used around page rewrites and consent
// writes. Callers depend on Tracer; main chooses OpenTelemetry or the no-op.
//
// Implementations:
//   - NoopTracer: default when tracing is disabled
//   - OTelTracer: OpenTelemetry adapter
//   - Recorder: keeps finished spans in memory for assertions
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanGateRewrite,
//	    tracer.Bool(tracer.AttrRecorded, d.Recorded),
//	)
//	defer span.End(err)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanGateRewrite   = "optin.gate.rewrite"
	SpanPanelRender   = "optin.panel.render"
	SpanConsentRecord = "optin.consent.record"
)

// Attribute keys.
const (
	AttrRecorded  = "consent.recorded"
	AttrMask      = "consent.mask"
	AttrAction    = "consent.action"
	AttrActivated = "gate.activated"
	AttrBlocked   = "gate.blocked"
	AttrPanel     = "panel.visible"
	AttrBot       = "client.bot"
)
