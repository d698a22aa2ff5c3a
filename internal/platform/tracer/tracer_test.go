package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"optin/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, tracer.SpanGateRewrite, tracer.Bool(tracer.AttrRecorded, true))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Int(tracer.AttrBlocked, 2))
	span.AddEvent("placeholder.inserted")
	span.End(errors.New("ignored"))
}

func TestOTelTracer_AcceptsEveryAttributeKind(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanConsentRecord,
		tracer.String(tracer.AttrAction, "accept_all"),
		tracer.Bool(tracer.AttrRecorded, true),
		tracer.Int(tracer.AttrActivated, 3),
		tracer.Duration("elapsed", time.Millisecond),
		tracer.Attribute{Key: "ignored", Value: struct{}{}},
	)
	require.NotNil(t, span)
	span.AddEvent("written", tracer.String(tracer.AttrMask, "1111"))
	span.End(errors.New("cookie did not read back"))
}

func TestRecorder(t *testing.T) {
	rec := tracer.NewRecorder()

	_, span := rec.Start(context.Background(), tracer.SpanGateRewrite, tracer.Bool(tracer.AttrRecorded, false))
	span.SetAttributes(tracer.Int(tracer.AttrBlocked, 2))
	span.AddEvent("parsed")
	assert.Empty(t, rec.Spans(), "unfinished spans are not reported")
	span.End(nil)

	_, other := rec.Start(context.Background(), tracer.SpanPanelRender)
	other.End(assert.AnError)

	got := rec.Named(tracer.SpanGateRewrite)
	require.Len(t, got, 1)
	assert.Equal(t, false, got[0].Attrs[tracer.AttrRecorded])
	assert.Equal(t, int64(2), got[0].Attrs[tracer.AttrBlocked])
	assert.Equal(t, []string{"parsed"}, got[0].Events)
	assert.NoError(t, got[0].Err)

	require.Len(t, rec.Spans(), 2)
	assert.ErrorIs(t, rec.Spans()[1].Err, assert.AnError)
}

func TestDuration(t *testing.T) {
	attr := tracer.Duration("latency", 150*time.Millisecond)
	assert.Equal(t, int64(150), attr.Value)
}
