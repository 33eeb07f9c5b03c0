package sioclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logical Socket.IO client bound to an endpoint of a session.
//
// Events are delivered to the client handler from the session delivery goroutine. Methods can
// be called from any goroutine, handlers included.
type Client struct {
	// Session the client belongs to
	session *Session
	// Unique client ID
	id string
	// Endpoint the client is bound to. Empty for the default endpoint.
	endpoint string
	// Handler which receives client events
	handler EventHandler
	// Mutex which protects routes
	mu sync.RWMutex
	// Callbacks registered for named events
	routes map[string][]NamedEventCallback
	// Set once the client has been reported connected. Owned by the delivery context.
	connected bool
	// Set when the transport has been lost after the client was connected. Owned by the
	// delivery context.
	disconnected bool
	// Set once the client has been removed from its session
	removed atomic.Bool
	// True while the client is connected and its transport is attached
	online atomic.Bool
}

// Create a new client.
func newClient(session *Session, endpoint string, handler EventHandler) *Client {
	return &Client{
		session:  session,
		id:       uuid.NewString(),
		endpoint: endpoint,
		handler:  handler,
		routes:   map[string][]NamedEventCallback{},
	}
}

// Return the client unique ID.
func (c *Client) Id() string {
	return c.id
}

// Return the endpoint the client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Return true if the client is connected and the session transport is attached.
func (c *Client) IsConnected() bool {
	return c.online.Load()
}

// # Description
//
// Register a callback called for each named event received with the provided name. Callbacks
// are called after the client handler has received the NamedEvent, in registration order.
func (c *Client) On(name string, callback NamedEventCallback) {
	if callback == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[name] = append(c.routes[name], callback)
}

// Return the callbacks registered for a named event.
func (c *Client) callbacks(name string) []NamedEventCallback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]NamedEventCallback(nil), c.routes[name]...)
}

// # Description
//
// Send a plain message (3:::data) to the client endpoint.
//
// Send does not wait for the packet to be written: if the session is not attached when the
// packet is processed, the handler receives an ErrorEvent with ErrNotConnected and the packet is
// dropped.
//
// # Inputs
//
//   - ctx: Context used for tracing purpose.
//   - msg: Message data.
//   - ack: Optional callback called once with the server ack arguments.
//
// # Returns
//
// ErrClientDisconnected if the client has been disconnected, ErrSessionClosed if the session
// has been closed.
func (c *Client) Send(ctx context.Context, msg string, ack AckCallback) error {
	return c.emit(ctx, &Packet{Type: PacketTypeMessage, Data: msg}, ack)
}

// # Description
//
// Marshal v and send it as a JSON message (4:::json) to the client endpoint. See Send.
func (c *Client) SendJSON(ctx context.Context, v any, ack AckCallback) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal json message: %w", err)
	}
	return c.emit(ctx, &Packet{Type: PacketTypeJSON, Data: string(raw)}, ack)
}

// # Description
//
// Emit a named event (5:::{"name":...,"args":[...]}) to the client endpoint. See Send.
func (c *Client) Emit(ctx context.Context, name string, args []any, ack AckCallback) error {
	data, err := encodeEventPayload(name, args)
	if err != nil {
		return fmt.Errorf("failed to encode event %q: %w", name, err)
	}
	return c.emit(ctx, &Packet{Type: PacketTypeEvent, Data: data}, ack)
}

// Post the packet to the session delivery context.
func (c *Client) emit(ctx context.Context, p *Packet, ack AckCallback) error {
	_, span := c.session.tracer.Start(ctx, spanClientEmit,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String(attrClientId, c.id),
			attribute.String(attrEndpoint, c.endpoint),
			attribute.String(attrPacketType, p.Type.String())))
	defer span.End()
	if c.removed.Load() {
		return handleError(ErrClientDisconnected, span, codes.Error, codes.Error.String())
	}
	if !c.session.delivery.post(func() { c.session.emit(c, p, ack) }) {
		return handleError(ErrSessionClosed, span, codes.Error, codes.Error.String())
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// # Description
//
// Disconnect the client. The client handler receives a DisconnectEvent without error and the
// client is removed from its session. A disconnect packet (0::endpoint) is sent when the client
// is the last one bound to a non-default endpoint. The transport is closed once the last client
// of the session has been disconnected.
//
// # Returns
//
// ErrClientDisconnected if the client has already been disconnected, ErrSessionClosed if the
// session has been closed.
func (c *Client) Disconnect(ctx context.Context) error {
	_, span := c.session.tracer.Start(ctx, spanClientDisconnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrClientId, c.id),
			attribute.String(attrEndpoint, c.endpoint)))
	defer span.End()
	if c.removed.Load() {
		return handleError(ErrClientDisconnected, span, codes.Error, codes.Error.String())
	}
	if !c.session.delivery.post(func() { c.session.disconnectClient(c) }) {
		return handleError(ErrSessionClosed, span, codes.Error, codes.Error.String())
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}
