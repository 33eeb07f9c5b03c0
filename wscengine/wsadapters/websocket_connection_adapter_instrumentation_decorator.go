package wsadapters

import (
	"context"
	"net/url"

	"github.com/gbdevw/gowsio/wshandshake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// A decorator which can be used to automatically instrument implementations of
// WebsocketConnectionAdapterInterface.
type WebsocketConnectionAdapterInstrumentationDecorator struct {
	// Decorated WebsocketConnectionAdapterInterface implementation
	decorated WebsocketConnectionAdapterInterface
	// Tracer used for instrumentation
	tracer trace.Tracer
}

// # Description
//
// Create a new decorator which will automatically instrument the provided implementation of
// WebsocketConnectionAdapterInterface. If tracerProvider is nil, the global one is used.
func NewWebsocketConnectionAdapterInstrumentationDecorator(
	decorated WebsocketConnectionAdapterInterface,
	tracerProvider trace.TracerProvider,
) (*WebsocketConnectionAdapterInstrumentationDecorator, error) {
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	return &WebsocketConnectionAdapterInstrumentationDecorator{
		decorated: decorated,
		tracer:    tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
	}, nil
}

// Decorate and instrument the Dial method of a WebsocketConnectionAdapterInterface implementation.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Dial(ctx context.Context, target *url.URL) (*wshandshake.Response, error) {
	ctx, span := decorator.tracer.Start(ctx, spanDial,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrUrl, target.String()),
		))
	defer span.End()
	resp, err := decorator.decorated.Dial(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return resp, err
	}
	if resp != nil {
		span.SetAttributes(attribute.Int(attrStatusCode, resp.StatusCode))
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return resp, err
}

// Decorate and instrument the Close method of a WebsocketConnectionAdapterInterface implementation.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Close(ctx context.Context, code StatusCode, reason string) error {
	ctx, span := decorator.tracer.Start(ctx, spanClose,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int(attrCloseCode, int(code)),
			attribute.String(attrCloseReason, reason),
		))
	defer span.End()
	err := decorator.decorated.Close(ctx, code, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
	}
	return err
}

// Decorate and instrument the Ping method of a WebsocketConnectionAdapterInterface implementation.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Ping(ctx context.Context) error {
	ctx, span := decorator.tracer.Start(ctx, spanPing, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	err := decorator.decorated.Ping(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
	}
	return err
}

// Decorate and instrument the Read method of a WebsocketConnectionAdapterInterface implementation.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Read(ctx context.Context) (MessageType, []byte, error) {
	ctx, span := decorator.tracer.Start(ctx, spanRead, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	msgType, msg, err := decorator.decorated.Read(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return msgType, msg, err
	}
	span.AddEvent(eventReceived, trace.WithAttributes(
		attribute.Int(attrMessageByteSize, len(msg)),
		attribute.String(attrMessageType, msgType.String()),
	))
	return msgType, msg, err
}

// Decorate and instrument the Write method of a WebsocketConnectionAdapterInterface implementation.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	ctx, span := decorator.tracer.Start(ctx, spanWrite,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int(attrMessageByteSize, len(msg)),
			attribute.String(attrMessageType, msgType.String()),
		))
	defer span.End()
	err := decorator.decorated.Write(ctx, msgType, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
	}
	return err
}

// Simple proxy for non-instrumented getter
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) GetUnderlyingWebsocketConnection() any {
	return decorator.decorated.GetUnderlyingWebsocketConnection()
}
