package sioclient

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

/*************************************************************************************************/
/* TRACING & METRICS RELATED CONSTANTS                                                           */
/*************************************************************************************************/

const (
	// Package name used by library tracer and meter
	pkgName = "gowsio.sioclient"
	// Package version
	pkgVersion = "0.1.0"

	// Namespace used by spans, events, attributes and instruments
	namespace = "socketio"

	// Name of span used to trace the session negotiation
	spanBootstrap = namespace + ".bootstrap"
	// Name of span used to trace Session.Connect
	spanSessionConnect = namespace + ".session.connect"
	// Name of span used to trace Session.Close
	spanSessionClose = namespace + ".session.close"
	// Name of span used to trace the transport attachment
	spanSessionAttach = namespace + ".session.attach"
	// Name of span used to trace the processing of a received packet
	spanSessionReceive = namespace + ".session.receive"
	// Name of span used to trace Client.Disconnect
	spanClientDisconnect = namespace + ".client.disconnect"
	// Name of span used to trace the loss of the transport
	spanSessionTransportLost = namespace + ".session.transport_lost"
	// Name of span used to trace packets emitted by a client
	spanClientEmit = namespace + ".client.emit"

	// Event used when the transport has been lost
	eventTransportLost = namespace + ".transport_lost"
	// Event used when a reconnect has been scheduled
	eventReconnectScheduled = namespace + ".reconnect_scheduled"

	// Attribute used to store URLs
	attrURL = "url.full"
	// Attribute used to store the session ID
	attrSessionId = namespace + ".session_id"
	// Attribute used to store the negotiated heartbeat timeout
	attrHeartbeatMs = namespace + ".heartbeat_timeout_ms"
	// Attribute used to store an endpoint
	attrEndpoint = namespace + ".endpoint"
	// Attribute used to store a client ID
	attrClientId = namespace + ".client_id"
	// Attribute used to store a packet type
	attrPacketType = namespace + ".packet.type"
	// Attribute used to store a ack ID
	attrAckId = namespace + ".packet.ack_id"
	// Attribute used to store the error which caused the transport loss
	attrCloseError = namespace + ".error"
	// Attribute used to store the reconnect delay
	attrReconnectDelayMs = namespace + ".reconnect_delay_ms"

	// Name of the counter of packets sent
	instrPacketsSent = namespace + ".packets.sent"
	// Name of the counter of packets received
	instrPacketsReceived = namespace + ".packets.received"
	// Name of the counter of reconnect attempts
	instrReconnects = namespace + ".reconnects"
	// Name of the counter of acks resolved
	instrAcksResolved = namespace + ".acks.resolved"
)

// Internal structure used to retain references to instruments that record session metrics.
type sessionInstruments struct {
	// Counter of packets sent by type
	packetsSent metric.Int64Counter
	// Counter of packets received by type
	packetsReceived metric.Int64Counter
	// Counter of reconnect attempts
	reconnects metric.Int64Counter
	// Counter of resolved acks
	acksResolved metric.Int64Counter
}

// Create the instruments used by sessions.
func newSessionInstruments(meter metric.Meter) (*sessionInstruments, error) {
	packetsSent, err := meter.Int64Counter(instrPacketsSent,
		metric.WithDescription("Number of Socket.IO packets sent"))
	if err != nil {
		return nil, err
	}
	packetsReceived, err := meter.Int64Counter(instrPacketsReceived,
		metric.WithDescription("Number of Socket.IO packets received"))
	if err != nil {
		return nil, err
	}
	reconnects, err := meter.Int64Counter(instrReconnects,
		metric.WithDescription("Number of scheduled reconnect attempts"))
	if err != nil {
		return nil, err
	}
	acksResolved, err := meter.Int64Counter(instrAcksResolved,
		metric.WithDescription("Number of acks resolved by the server"))
	if err != nil {
		return nil, err
	}
	return &sessionInstruments{
		packetsSent:     packetsSent,
		packetsReceived: packetsReceived,
		reconnects:      reconnects,
		acksResolved:    acksResolved,
	}, nil
}

// # Description
//
// The function records the input error in the provided span using span.RecordError(err) and set
// the span status with the provided code and description. The function returns the provided error.
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
func handlePotentialError(err error, span trace.Span) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}
