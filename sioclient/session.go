// Package sioclient contains a Socket.IO 0.9 client which multiplexes logical clients bound to
// endpoints over a single websocket transport.
//
// A Session negotiates a session id with the server, opens the websocket transport, keeps it
// alive with heartbeats and reopens it with an exponential backoff when it fails. Events are
// delivered to client handlers one at a time, in wire order, from a single delivery goroutine
// which also owns all session state.
package sioclient

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gbdevw/gowsio/wscengine"
	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wscengine/wsclient"
	"github.com/gbdevw/gowsio/wshandshake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

/*************************************************************************************************/
/* SESSION STATE                                                                                 */
/*************************************************************************************************/

// Session state.
type SessionState int32

const (
	// No transport. A reconnect may be scheduled.
	SessionDisconnected SessionState = iota
	// Session id is being negotiated.
	SessionNegotiating
	// Websocket transport is being opened.
	SessionTransportConnecting
	// Websocket transport is open and clients can emit.
	SessionAttached
)

func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionNegotiating:
		return "negotiating"
	case SessionTransportConnecting:
		return "transport_connecting"
	case SessionAttached:
		return "attached"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

/*************************************************************************************************/
/* SESSION                                                                                       */
/*************************************************************************************************/

// Timer abstraction used for heartbeats and reconnects.
type stopper interface {
	Stop() bool
}

// Ack requested by a client and waiting for the server answer.
type pendingAck struct {
	id       int
	client   *Client
	callback AckCallback
}

// One attempt to attach a transport: negotiation, transport and heartbeat timer. Attachments
// are compared by identity so events from a stale transport or timer are ignored.
type attachment struct {
	handshake *Handshake
	transport wscengine.WebsocketTransportInterface
	heartbeat stopper
}

// Socket.IO 0.9 session which multiplexes clients over a single websocket transport.
type Session struct {
	// Server base URL (http or https)
	target *url.URL
	// Configuration options
	opts *SessionConfigurationOptions
	// Collaborator used to negotiate sessions
	bootstrapper Bootstrapper
	// Factory used to create transports
	factory TransportFactory
	// Logger
	logger *zap.Logger
	// Tracer
	tracer trace.Tracer
	// Instruments used to record metrics
	instruments *sessionInstruments
	// Delivery context which owns the state below
	delivery *deliveryContext
	// Context bound to the session lifetime
	ctx context.Context
	// Cancel function of ctx
	cancel context.CancelFunc
	// Current state, readable from any goroutine
	state atomic.Int32
	// Set once Close has been called
	closed atomic.Bool
	// Function used to schedule timers
	afterFunc func(d time.Duration, f func()) stopper

	/* Delivery context owned state */

	// Live clients
	clients []*Client
	// Acks waiting for the server answer
	acks map[int]*pendingAck
	// Next ack id
	nextAckID int
	// Attachment in progress (negotiation or transport connection)
	pending *attachment
	// Attached transport
	current *attachment
	// Reconnect delay policy
	backoff *backoff.ExponentialBackOff
	// Scheduled reconnect
	reconnectTimer stopper
	// Set once the session has been torn down by Close
	torndown bool
}

// # Description
//
// Factory which creates a new Session. No connection is opened until a client is connected.
//
// # Inputs
//
//   - target: Server base URL (http or https). The handshake path is appended to it.
//   - opts: Session options. If nil, default options are used.
//   - bootstrapper: Collaborator used to negotiate sessions. If nil, a HTTPBootstrapper is used.
//   - factory: Factory used to create transports. If nil, a RFC6455TransportFactory with default
//     options is used.
//   - logger: Logger. If nil, a no-op logger is used.
//   - tracerProvider: Tracer provider. If nil, the global tracer provider is used.
//   - meterProvider: Meter provider. If nil, the global meter provider is used.
//
// # Returns
//
// The new session or an error if target is invalid or if options are invalid.
func NewSession(
	target *url.URL,
	opts *SessionConfigurationOptions,
	bootstrapper Bootstrapper,
	factory TransportFactory,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) (*Session, error) {
	if target == nil {
		return nil, fmt.Errorf("provided url is nil")
	}
	switch target.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported url scheme %q: http or https expected", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("provided url has no host")
	}
	if opts == nil {
		opts = NewSessionConfigurationOptions()
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	instruments, err := newSessionInstruments(meterProvider.Meter(pkgName, metric.WithInstrumentationVersion(pkgVersion)))
	if err != nil {
		return nil, err
	}
	if bootstrapper == nil {
		bootstrapper = NewHTTPBootstrapper(nil, opts.HandshakePath, nil, tracerProvider)
	}
	if factory == nil {
		factory = NewRFC6455TransportFactory(nil, nil, logger, tracerProvider, meterProvider)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.ReconnectBaseDelay
	b.Multiplier = opts.ReconnectMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = opts.ReconnectMaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		target:       target,
		opts:         opts,
		bootstrapper: bootstrapper,
		factory:      factory,
		logger:       logger.With(zap.String("target", target.Redacted())),
		tracer:       tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
		instruments:  instruments,
		ctx:          ctx,
		cancel:       cancel,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		acks:    map[int]*pendingAck{},
		backoff: b,
	}
	s.state.Store(int32(SessionDisconnected))
	s.delivery = newDeliveryContext()
	return s, nil
}

// Return the session current state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Return a channel which is closed once the session has been closed and all events delivered.
func (s *Session) Done() <-chan struct{} {
	return s.delivery.done
}

// # Description
//
// Register a new client bound to the provided endpoint. The method does not block: the client
// receives a ConnectEvent once the session is attached (immediately if it already is). A
// non-default endpoint is connected with a connect packet (1::endpoint).
//
// If the session cannot be attached, the client receives a ConnectEvent with the error and is
// removed from the session.
//
// # Inputs
//
//   - ctx: Context used for tracing purpose.
//   - endpoint: Endpoint (ex: /chat). Empty for the default endpoint.
//   - handler: Handler which receives the client events. Must not be nil.
//
// # Returns
//
// The new client or an error if handler is nil or if the session has been closed.
func (s *Session) Connect(ctx context.Context, endpoint string, handler EventHandler) (*Client, error) {
	_, span := s.tracer.Start(ctx, spanSessionConnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrEndpoint, endpoint)))
	defer span.End()
	if handler == nil {
		return nil, handleError(fmt.Errorf("provided handler is nil"), span, codes.Error, codes.Error.String())
	}
	if s.closed.Load() {
		return nil, handleError(ErrSessionClosed, span, codes.Error, codes.Error.String())
	}
	client := newClient(s, endpoint, handler)
	span.SetAttributes(attribute.String(attrClientId, client.id))
	if !s.delivery.post(func() { s.addClient(client) }) {
		return nil, handleError(ErrSessionClosed, span, codes.Error, codes.Error.String())
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return client, nil
}

// # Description
//
// Close the session permanently: every client receives a DisconnectEvent with ErrSessionClosed,
// the transport is closed and pending timers are cancelled. The method waits for the delivery
// goroutine to exit and must not be called from an event handler.
//
// # Returns
//
// nil once the session is closed or the context error if it expires first.
func (s *Session) Close(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, spanSessionClose, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	if s.closed.CompareAndSwap(false, true) {
		s.delivery.post(s.teardown)
		s.delivery.stop()
	}
	select {
	case <-s.delivery.done:
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	case <-ctx.Done():
		return handleError(ctx.Err(), span, codes.Error, codes.Error.String())
	}
}

/*************************************************************************************************/
/* DELIVERY CONTEXT TASKS                                                                        */
/*************************************************************************************************/

// Set the session state.
func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// Deliver an event to a client handler.
func (s *Session) deliver(c *Client, event Event) {
	c.handler.HandleEvent(s.ctx, c, event)
}

// Register a client.
func (s *Session) addClient(c *Client) {
	if s.torndown {
		c.removed.Store(true)
		s.deliver(c, ConnectEvent{Err: ErrSessionClosed})
		return
	}
	s.clients = append(s.clients, c)
	switch {
	case s.State() == SessionAttached:
		s.attachClient(c)
	case s.State() == SessionDisconnected && s.reconnectTimer == nil:
		s.negotiate()
	}
}

// Start a new attachment: negotiate the session in the background.
func (s *Session) negotiate() {
	att := &attachment{}
	s.pending = att
	s.setState(SessionNegotiating)
	s.logger.Debug("negotiating session")
	go func() {
		hs, err := s.bootstrapper.Bootstrap(s.ctx, s.target)
		s.delivery.post(func() { s.onBootstrap(att, hs, err) })
	}()
}

// Open the transport once the session has been negotiated.
func (s *Session) onBootstrap(att *attachment, hs *Handshake, err error) {
	if s.pending != att {
		return
	}
	if err != nil {
		s.logger.Info("session negotiation failed", zap.Error(err))
		s.transportLost(err)
		return
	}
	att.handshake = hs
	transport, err := s.factory.NewTransport(hs.WebsocketURL(), &transportListener{session: s, att: att})
	if err != nil {
		s.transportLost(err)
		return
	}
	att.transport = transport
	s.setState(SessionTransportConnecting)
	s.logger.Debug("opening transport", zap.String("session_id", hs.SessionID), zap.String("transport_id", transport.Id()))
	if err := transport.Connect(s.ctx); err != nil {
		s.transportLost(err)
	}
}

// Attach the transport once it is open.
func (s *Session) onAttach(att *attachment) {
	if s.pending != att {
		return
	}
	_, span := s.tracer.Start(s.ctx, spanSessionAttach,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrSessionId, att.handshake.SessionID)))
	defer span.End()
	s.pending = nil
	s.current = att
	s.setState(SessionAttached)
	s.backoff.Reset()
	s.logger.Info("session attached", zap.String("session_id", att.handshake.SessionID))
	if att.handshake.HeartbeatTimeout > 0 {
		s.heartbeat(att)
	}
	for _, c := range append([]*Client(nil), s.clients...) {
		s.attachClient(c)
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Connect a client on the attached transport.
func (s *Session) attachClient(c *Client) {
	if c.endpoint != "" && !s.endpointOnline(c.endpoint) {
		s.send(s.current, &Packet{Type: PacketTypeConnect, AckID: -1, Endpoint: c.endpoint})
	}
	s.markConnected(c)
}

// Return true if a client bound to the endpoint is online.
func (s *Session) endpointOnline(endpoint string) bool {
	for _, c := range s.clients {
		if c.endpoint == endpoint && c.online.Load() {
			return true
		}
	}
	return false
}

// Mark a client connected and report connect or reconnect.
func (s *Session) markConnected(c *Client) {
	switch {
	case !c.connected:
		c.connected = true
		c.online.Store(true)
		s.deliver(c, ConnectEvent{})
	case c.disconnected:
		c.disconnected = false
		c.online.Store(true)
		s.deliver(c, ReconnectEvent{})
	}
}

// Send a heartbeat and schedule the next one while the attachment is current.
func (s *Session) heartbeat(att *attachment) {
	if s.current != att {
		return
	}
	s.send(att, &Packet{Type: PacketTypeHeartbeat, AckID: -1})
	att.heartbeat = s.afterFunc(att.handshake.HeartbeatInterval(), func() {
		s.delivery.post(func() { s.heartbeat(att) })
	})
}

// Handle a message received by the transport.
func (s *Session) onMessage(att *attachment, msgType wsadapters.MessageType, msg []byte) {
	if s.current != att {
		return
	}
	if msgType != wsadapters.Text {
		s.logger.Debug("ignoring binary message", zap.Int("length", len(msg)))
		return
	}
	_, span := s.tracer.Start(s.ctx, spanSessionReceive, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	packet, err := ParsePacket(string(msg))
	if err != nil {
		handleError(err, span, codes.Error, codes.Error.String())
		s.logger.Warn("invalid packet received", zap.Error(err))
		s.dropAttachment(att, err)
		return
	}
	span.SetAttributes(
		attribute.String(attrPacketType, packet.Type.String()),
		attribute.String(attrEndpoint, packet.Endpoint))
	s.instruments.packetsReceived.Add(s.ctx, 1, metric.WithAttributes(attribute.String(attrPacketType, packet.Type.String())))
	s.dispatch(att, packet)
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Dispatch a packet received on the current attachment.
func (s *Session) dispatch(att *attachment, p *Packet) {
	switch p.Type {
	case PacketTypeDisconnect:
		if p.Endpoint == "" {
			s.dropAttachment(att, ErrServerDisconnect)
			return
		}
		s.endpointDisconnected(p.Endpoint)
	case PacketTypeConnect:
		for _, c := range s.selectClients(p.Endpoint) {
			s.markConnected(c)
		}
	case PacketTypeHeartbeat:
		s.send(att, &Packet{Type: PacketTypeHeartbeat, AckID: -1})
	case PacketTypeMessage:
		ack := s.newInboundAck(att, p)
		for _, c := range s.selectClients(p.Endpoint) {
			s.deliver(c, MessageEvent{Data: p.Data, Ack: ack.ackFunc()})
		}
		ack.auto()
	case PacketTypeJSON:
		ack := s.newInboundAck(att, p)
		data := parseJSONPayload(p.Data)
		for _, c := range s.selectClients(p.Endpoint) {
			s.deliver(c, JSONMessageEvent{Data: data, Ack: ack.ackFunc()})
		}
		ack.auto()
	case PacketTypeEvent:
		ack := s.newInboundAck(att, p)
		name, args := parseEventPayload(p.Data)
		for _, c := range s.selectClients(p.Endpoint) {
			s.deliver(c, NamedEvent{Name: name, Args: args, Ack: ack.ackFunc()})
			for _, callback := range c.callbacks(name) {
				callback(s.ctx, args, ack.ackFunc())
			}
		}
		ack.auto()
	case PacketTypeAck:
		id, args, ok := parseAckPayload(p.Data)
		if !ok {
			s.logger.Debug("ignoring ack with invalid id", zap.String("data", truncate(p.Data, 64)))
			return
		}
		pending, found := s.acks[id]
		if !found {
			return
		}
		delete(s.acks, id)
		s.instruments.acksResolved.Add(s.ctx, 1, metric.WithAttributes(attribute.Int(attrAckId, id)))
		pending.callback(args)
	case PacketTypeError:
		serverErr := parseErrorPayload(p.Data)
		for _, c := range s.selectClients(p.Endpoint) {
			s.deliver(c, ErrorEvent{Err: serverErr})
		}
	case PacketTypeNoop:
	}
}

// Select the clients addressed by an endpoint: every client for the empty endpoint, clients
// bound to the exact endpoint otherwise.
func (s *Session) selectClients(endpoint string) []*Client {
	selected := []*Client{}
	for _, c := range s.clients {
		if endpoint == "" || c.endpoint == endpoint {
			selected = append(selected, c)
		}
	}
	return selected
}

// Remove the clients of an endpoint disconnected by the server.
func (s *Session) endpointDisconnected(endpoint string) {
	for _, c := range s.selectClients(endpoint) {
		s.removeClient(c)
		s.deliver(c, DisconnectEvent{Err: ErrEndpointDisconnected})
	}
	if len(s.clients) == 0 {
		s.teardownTransport()
	}
}

// Remove a client and its pending acks.
func (s *Session) removeClient(c *Client) {
	remaining := s.clients[:0]
	for _, other := range s.clients {
		if other != c {
			remaining = append(remaining, other)
		}
	}
	s.clients = remaining
	for id, pending := range s.acks {
		if pending.client == c {
			delete(s.acks, id)
		}
	}
	c.removed.Store(true)
	c.online.Store(false)
}

// Handle the end of the transport of an attachment.
func (s *Session) onTransportDown(att *attachment, err error) {
	if s.current != att && s.pending != att {
		return
	}
	s.logger.Info("transport lost", zap.Error(err))
	s.transportLost(err)
}

// Close the transport of an attachment and handle the transport loss.
func (s *Session) dropAttachment(att *attachment, err error) {
	if att.transport != nil {
		att.transport.Disconnect(s.ctx)
	}
	s.transportLost(err)
}

// # Description
//
// Handle the loss of the transport: pending acks are cleared, connected clients receive a
// DisconnectEvent, clients which have never been connected receive a failed ConnectEvent and are
// removed. A reconnect is then scheduled if clients remain.
func (s *Session) transportLost(err error) {
	_, span := s.tracer.Start(s.ctx, spanSessionTransportLost, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.AddEvent(eventTransportLost, trace.WithAttributes(attribute.String(attrCloseError, err.Error())))
	s.stopHeartbeat()
	s.current = nil
	s.pending = nil
	s.setState(SessionDisconnected)
	s.acks = map[int]*pendingAck{}
	for _, c := range append([]*Client(nil), s.clients...) {
		if c.connected {
			if !c.disconnected {
				c.disconnected = true
				c.online.Store(false)
				s.deliver(c, DisconnectEvent{Err: err})
			}
			continue
		}
		s.removeClient(c)
		s.deliver(c, ConnectEvent{Err: err})
	}
	s.scheduleReconnect(span)
}

// Schedule a reconnect if enabled and if clients remain.
func (s *Session) scheduleReconnect(span trace.Span) {
	if !s.opts.AutoReconnect || len(s.clients) == 0 || s.reconnectTimer != nil || s.torndown {
		return
	}
	delay := s.backoff.NextBackOff()
	if delay == backoff.Stop {
		return
	}
	s.instruments.reconnects.Add(s.ctx, 1)
	span.AddEvent(eventReconnectScheduled, trace.WithAttributes(attribute.Int64(attrReconnectDelayMs, delay.Milliseconds())))
	s.logger.Info("reconnect scheduled", zap.Duration("delay", delay))
	var timer stopper
	timer = s.afterFunc(delay, func() {
		s.delivery.post(func() {
			if s.reconnectTimer != timer {
				return
			}
			s.reconnectTimer = nil
			if s.torndown || s.State() != SessionDisconnected || len(s.clients) == 0 {
				return
			}
			s.negotiate()
		})
	})
	s.reconnectTimer = timer
}

// Stop the heartbeat timer of the current attachment.
func (s *Session) stopHeartbeat() {
	if s.current != nil && s.current.heartbeat != nil {
		s.current.heartbeat.Stop()
	}
}

// Close the transport and cancel timers without scheduling a reconnect.
func (s *Session) teardownTransport() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.stopHeartbeat()
	for _, att := range []*attachment{s.current, s.pending} {
		if att != nil && att.transport != nil {
			att.transport.Disconnect(s.ctx)
		}
	}
	s.current = nil
	s.pending = nil
	s.acks = map[int]*pendingAck{}
	s.backoff.Reset()
	s.setState(SessionDisconnected)
}

// Tear the session down. Last task run by the delivery context.
func (s *Session) teardown() {
	s.torndown = true
	s.teardownTransport()
	clients := s.clients
	s.clients = nil
	for _, c := range clients {
		c.removed.Store(true)
		c.online.Store(false)
		s.deliver(c, DisconnectEvent{Err: ErrSessionClosed})
	}
	s.cancel()
	s.logger.Info("session closed")
}

// Send a packet on the transport of an attachment.
func (s *Session) send(att *attachment, p *Packet) error {
	raw := p.Encode()
	err := att.transport.Send(s.ctx, wsadapters.Text, []byte(raw))
	if err != nil {
		s.logger.Warn("failed to send packet", zap.String("type", p.Type.String()), zap.Error(err))
		return err
	}
	s.instruments.packetsSent.Add(s.ctx, 1, metric.WithAttributes(attribute.String(attrPacketType, p.Type.String())))
	return nil
}

// Emit a packet for a client. The ack callback, if any, is registered with the next ack id.
func (s *Session) emit(c *Client, p *Packet, callback AckCallback) {
	if c.removed.Load() {
		s.logger.Debug("dropping packet emitted by a disconnected client", zap.String("client_id", c.id))
		return
	}
	if s.current == nil {
		s.deliver(c, ErrorEvent{Err: ErrNotConnected})
		return
	}
	p.Endpoint = c.endpoint
	p.AckID = -1
	if callback != nil {
		p.AckID = s.nextAckID
		p.AckData = true
		s.nextAckID++
		s.acks[p.AckID] = &pendingAck{id: p.AckID, client: c, callback: callback}
	}
	if err := s.send(s.current, p); err != nil {
		delete(s.acks, p.AckID)
		s.deliver(c, ErrorEvent{Err: err})
	}
}

// Local disconnect of a client.
func (s *Session) disconnectClient(c *Client) {
	if c.removed.Load() {
		return
	}
	s.removeClient(c)
	if c.endpoint != "" && len(s.selectClients(c.endpoint)) == 0 && s.current != nil {
		s.send(s.current, &Packet{Type: PacketTypeDisconnect, AckID: -1, Endpoint: c.endpoint})
	}
	s.deliver(c, DisconnectEvent{})
	if len(s.clients) == 0 {
		s.teardownTransport()
	}
}

/*************************************************************************************************/
/* INBOUND ACK                                                                                   */
/*************************************************************************************************/

// Ack requested by the server for a received packet.
type inboundAck struct {
	session *Session
	att     *attachment
	id      int
	// Set once the ack has been sent or claimed by a handler
	done atomic.Bool
}

// Create the ack of a received packet. Nil if the server has not requested an ack.
func (s *Session) newInboundAck(att *attachment, p *Packet) *inboundAck {
	if p.AckID < 0 {
		return nil
	}
	return &inboundAck{session: s, att: att, id: p.AckID}
}

// Return the AckFunc given to handlers. Nil if no ack has been requested.
func (a *inboundAck) ackFunc() AckFunc {
	if a == nil {
		return nil
	}
	return a.ack
}

// Send the ack with the provided arguments. Only the first call has an effect.
func (a *inboundAck) ack(args ...any) error {
	data, err := encodeAckPayload(a.id, args)
	if err != nil {
		return err
	}
	if !a.done.CompareAndSwap(false, true) {
		return nil
	}
	if !a.session.delivery.post(func() { a.session.sendAck(a.att, data) }) {
		return ErrSessionClosed
	}
	return nil
}

// Send the ack without arguments unless a handler has already acked.
func (a *inboundAck) auto() {
	if a == nil || !a.done.CompareAndSwap(false, true) {
		return
	}
	data, _ := encodeAckPayload(a.id, nil)
	a.session.sendAck(a.att, data)
}

// Send an ack packet on the attachment if it is still current.
func (s *Session) sendAck(att *attachment, data string) {
	if s.current != att {
		s.logger.Debug("dropping ack for a stale transport")
		return
	}
	s.send(att, &Packet{Type: PacketTypeAck, AckID: -1, Data: data})
}

/*************************************************************************************************/
/* TRANSPORT LISTENER                                                                            */
/*************************************************************************************************/

// Listener which forwards the events of an attachment transport to the delivery context.
type transportListener struct {
	session *Session
	att     *attachment
}

func (l *transportListener) OnConnect(ctx context.Context, resp *wshandshake.Response) {
	l.session.delivery.post(func() { l.session.onAttach(l.att) })
}

func (l *transportListener) OnMessage(ctx context.Context, msgType wsadapters.MessageType, msg []byte) {
	l.session.delivery.post(func() { l.session.onMessage(l.att, msgType, msg) })
}

func (l *transportListener) OnDisconnect(ctx context.Context, closeMessage *wsclient.CloseMessageDetails, err error) {
	switch {
	case err != nil:
	case closeMessage != nil:
		err = wsadapters.WebsocketCloseError{Code: closeMessage.CloseReason, Reason: closeMessage.CloseMessage}
	default:
		err = ErrServerDisconnect
	}
	l.session.delivery.post(func() { l.session.onTransportDown(l.att, err) })
}

func (l *transportListener) OnError(ctx context.Context, err error) {
	l.session.delivery.post(func() { l.session.onTransportDown(l.att, err) })
}
