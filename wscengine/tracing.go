package wscengine

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

/*************************************************************************************************/
/* TRACING RELATED CONSTANTS                                                                     */
/*************************************************************************************************/

// Constants used for tracing and metrics purpose.
const (
	// Package name used by library tracer and meter
	pkgName = "gowsio.wscengine"
	// Package version
	pkgVersion = "0.1.0"

	// Namespace used by spans, events, attributes and instruments
	namespace = "wscengine"
	// Sub-namespace used by spans related to transport backgound tasks
	transportBackgroundNamespace = namespace + ".background"
	// Sub-namespace used by spans related to listener callbacks
	callbacksNamespace = namespace + ".callback"

	// Name of span used to trace Connect public method
	spanTransportConnect = namespace + ".connect"
	// Name of span used to trace Disconnect public method
	spanTransportDisconnect = namespace + ".disconnect"
	// Name of span used to trace Send public method
	spanTransportSend = namespace + ".send"
	// Name of span used to trace the background dial
	spanTransportBackgroundDial = transportBackgroundNamespace + ".dial"
	// Name of span used to trace the background read loop
	spanTransportBackgroundRun = transportBackgroundNamespace + ".run"
	// Name of span used to trace OnConnect callback call
	spanTransportOnConnect = callbacksNamespace + ".on_connect"
	// Name of span used to trace OnMessage callback call
	spanTransportOnMessage = callbacksNamespace + ".on_message"
	// Name of span used to trace OnDisconnect callback call
	spanTransportOnDisconnect = callbacksNamespace + ".on_disconnect"
	// Name of span used to trace OnError callback call
	spanTransportOnError = callbacksNamespace + ".on_error"

	// Event used in span to signal the read loop has exited
	eventReadLoopExit = namespace + ".read_loop_exit"
	// Event used in span to signal connection has been closed
	eventConnectionClosed = namespace + ".connection_closed"

	// Attribute used to indicate close reason code
	attrCloseCode = namespace + ".close_code"
	// Attribute used to indicate close reason
	attrCloseReason = namespace + ".close_reason"
	// Attribute used to store transport ID.
	attrTransportId = namespace + ".transport_id"
	// Attribute used to store the transport state
	attrState = namespace + ".state"
	// Attribute used to indicate message length
	attrMsgLength = namespace + ".message.length"
	// Attribute used to indicate message type
	attrMsgType = namespace + ".message.type"

	// Name of the counter of messages read by transports
	instrMessagesRead = namespace + ".messages.read"
	// Name of the counter of messages written by transports
	instrMessagesWritten = namespace + ".messages.written"
	// Name of the counter of connections opened by transports
	instrConnectionsOpened = namespace + ".connections.opened"
)

// # Description
//
// The function records the input error in the provided span using span.RecordError(err) and set
// the span status with the provided code and description. The function returns the provided error.
//
// # Usage tips
//
// The function is meant to replace code blocks like this one:
//
//	if err != nil {
//			span.RecordError(err)
//			span.SetStatus(code, description)
//			return err
//	}
//
// By:
//
//	if err != nil {
//			return handleError(err, span, code, description)
//	}
func handleError(err error, span trace.Span, code codes.Code, description string) error {
	span.RecordError(err)
	span.SetStatus(code, description)
	return err
}

// # Description
//
// If the error is not nil, the function records the input error in the provided span and set the
// span status with an error code and description. In the other case, the span status is set with
// a Ok code. The function returns the provided error in all cases.
//
// # Usage tips
//
// The function is meant to replace code blocks like this one:
//
//		if err != nil {
//				span.RecordError(err)
//				span.SetStatus(codes.Error, codes.Error.String())
//				return err
//		} else {
//			span.SetStatus(codes.Ok, codes.Ok.String())
//			return nil
//	}
//
// By:
//
//	return handlePotentialError(err, span)
func handlePotentialError(err error, span trace.Span) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	} else {
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	}
}
