package wscengine

import (
	"context"
	"fmt"

	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wscengine/wsclient"
	"github.com/gbdevw/gowsio/wshandshake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Package private decorator used to trace listener callbacks
type websocketClientInstrumentationDecorator struct {
	// Tracer used to instrument code
	tracer trace.Tracer
	// Decorated WebsocketClientInterface implementation
	decorated wsclient.WebsocketClientInterface
}

// # Description
//
// Build and return a new decorator which instrument a provided WebsocketClientInterface implementation.
//
// # Inputs
//
//   - decorated: The WebsocketClientInterface implementation to decorate. Must not be nil.
//   - tracerProvider: Tracer provider used to get a tracer. If nil, global traver provider will be used.
//
// # Returns
//
// A new insturmentation decorator for the provided WebsocketClientInterface implementation or an error
// if decorated is nil.
func NewWebsocketClientInstrumentationDecorator(decorated wsclient.WebsocketClientInterface, tracerProvider trace.TracerProvider) (*websocketClientInstrumentationDecorator, error) {
	if decorated == nil {
		// Return an error if decorated is nil
		return nil, fmt.Errorf("provided decorated is nil")
	}
	if tracerProvider == nil {
		// Use global tracer provider as instead
		tracerProvider = otel.GetTracerProvider()
	}
	// Build and return decorator
	return &websocketClientInstrumentationDecorator{
		decorated: decorated,
		tracer:    tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
	}, nil
}

// Instrument decorated.OnConnect call
func (decorator *websocketClientInstrumentationDecorator) OnConnect(ctx context.Context, resp *wshandshake.Response) {
	// Start a span
	ctx, span := decorator.tracer.Start(ctx, spanTransportOnConnect,
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	defer span.SetStatus(codes.Ok, codes.Ok.String())
	// Call decorated.OnConnect
	decorator.decorated.OnConnect(ctx, resp)
}

// Instrument decorated.OnMessage call
func (decorator *websocketClientInstrumentationDecorator) OnMessage(ctx context.Context, msgType wsadapters.MessageType, msg []byte) {
	// Start a span
	ctx, span := decorator.tracer.Start(ctx, spanTransportOnMessage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrMsgType, msgType.String()),
			attribute.Int(attrMsgLength, len(msg)),
		))
	defer span.End()
	defer span.SetStatus(codes.Ok, codes.Ok.String())
	// Call decorated.OnMessage
	decorator.decorated.OnMessage(ctx, msgType, msg)
}

// Instument decorated.OnDisconnect call
func (decorator *websocketClientInstrumentationDecorator) OnDisconnect(ctx context.Context, closeMessage *wsclient.CloseMessageDetails, err error) {
	// Start span
	attrs := []attribute.KeyValue{}
	if closeMessage != nil {
		attrs = append(attrs,
			attribute.Int(attrCloseCode, int(closeMessage.CloseReason)),
			attribute.String(attrCloseReason, closeMessage.CloseMessage))
	}
	ctx, span := decorator.tracer.Start(ctx, spanTransportOnDisconnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
	defer span.End()
	defer span.SetStatus(codes.Ok, codes.Ok.String())
	// Call decorated.OnDisconnect
	decorator.decorated.OnDisconnect(ctx, closeMessage, err)
}

// Instrument decorated.OnError call
func (decorator *websocketClientInstrumentationDecorator) OnError(ctx context.Context, err error) {
	// Start span
	ctx, span := decorator.tracer.Start(ctx, spanTransportOnError,
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.RecordError(err)
	defer span.SetStatus(codes.Ok, codes.Ok.String())
	// Call decorated.OnError
	decorator.decorated.OnError(ctx, err)
}
