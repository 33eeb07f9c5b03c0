// This package contains the implementation of a minimal Socket.IO 0.9 server used to exercise the
// Socket.IO client against a real websocket connection. The server has the following features:
//   - session negotiation on the handshake endpoint (the response status can be forced)
//   - websocket transport on <handshake path>/websocket/<session id>/
//   - echo of messages, JSON messages and events with acks when the client requests them
//   - commands sent as events which make the server close the connection, disconnect an endpoint
//     or send an error packet
//   - broadcast of raw packets, abrupt connection drops and recording of received packets
package sioserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gbdevw/gowsio/sioclient"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

/*****************************************************************************/
/* OPTIONS                                                                   */
/*****************************************************************************/

// Server options
type ServerOptions struct {
	// Path of the handshake endpoint
	HandshakePath string
	// Heartbeat timeout advertised in handshake responses. 0 is advertised as an empty value.
	HeartbeatTimeout time.Duration
	// Close timeout advertised in handshake responses. 0 is advertised as an empty value.
	CloseTimeout time.Duration
	// Transports advertised in handshake responses
	Transports []string
	// Period used by the server to send heartbeats. 0 disables server heartbeats.
	HeartbeatInterval time.Duration
}

// # Description
//
// Factory which creates ServerOptions with the following defaults:
//   - HandshakePath: /socket.io/1/
//   - HeartbeatTimeout: 60s
//   - CloseTimeout: 60s
//   - Transports: websocket, xhr-polling
//   - HeartbeatInterval: 0 (disabled)
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HandshakePath:     sioserver_default_handshake_path,
		HeartbeatTimeout:  60 * time.Second,
		CloseTimeout:      sioserver_close_timeout_seconds * time.Second,
		Transports:        []string{sioserver_websocket_transport, "xhr-polling"},
		HeartbeatInterval: 0,
	}
}

/*****************************************************************************/
/* SERVER                                                                    */
/*****************************************************************************/

// Packet received by the server
type ReceivedPacket struct {
	// Session which has received the packet
	SessionID string
	// Raw packet
	Raw string
}

// Structure for the Socket.IO server
type SocketIOServer struct {
	// Underlying http.Server
	httpServer *http.Server
	// Listener bound when server starts
	listener net.Listener
	// Server options
	opts *ServerOptions
	// Websocket upgrader
	upgrader websocket.Upgrader
	// Mutex which protects the fields below
	mu sync.Mutex
	// Negotiated sessions
	sessions map[string]*clientSession
	// Received packets
	received []ReceivedPacket
	// Number of handshakes served
	handshakes int64
	// Status code used to answer handshakes. 200 if 0.
	handshakeStatus int
	// Indicates that server has started
	started bool
	// Context bound to server lifetime
	serverCtx context.Context
	// Cancel function used to stop server
	cancelServerCtx context.CancelFunc
	// Tracer used to instrument server code
	tracer trace.Tracer
	// Reference to instruments used to record server metrics
	instruments *socketIOServerInstruments
	// Logger
	logger *zap.Logger
}

// Internal structure used to retain references to instruments that record SocketIOServer metrics.
type socketIOServerInstruments struct {
	// Gauge that monitors the number of sessions with an open websocket connection
	activeSessionsGauge metric.Int64ObservableGauge
	// Counter of handshakes served
	handshakesCounter metric.Int64ObservableCounter
	// Counter of packets received
	packetsReceived metric.Int64Counter
}

// Internal structure that represents a negotiated client session
type clientSession struct {
	// Session ID
	sessionId string
	// Websocket connection, nil until the client opens the websocket transport
	conn *websocket.Conn
	// Mutex used to serialize writes
	writeMu sync.Mutex
	// Context bound to the connection lifetime
	ctx context.Context
	// Cancel function of ctx
	cancel context.CancelFunc
}

// # Description
//
// Factory which creates a new, non-started SocketIOServer.
//
// # Inputs
//
//   - httpServer: The underlying HTTP Server to use. The provided HTTP Server handler will be
//     overriden with this server handler. If nil, a HTTP server listening on a random localhost
//     port is used.
//   - opts: Server options. If nil, default options are used.
//   - logger: Logger. If nil, a no-op logger is used.
//   - tracerProvider: Tracer provider to use. If nil, the global tracer provider will be used.
//   - meterProvider: Meter provider to use. If nil, the global meter provider will be used.
//
// # Returns
//
// A new, non-started SocketIOServer or an error if instruments could not be created.
func NewSocketIOServer(
	httpServer *http.Server,
	opts *ServerOptions,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) (*SocketIOServer, error) {
	if httpServer == nil {
		httpServer = &http.Server{Addr: "127.0.0.1:0"}
	}
	if opts == nil {
		opts = NewServerOptions()
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
	meter := meterProvider.Meter(sioserver_instrumentation_id)
	srv := &SocketIOServer{
		httpServer: httpServer,
		opts:       opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: map[string]*clientSession{},
		received: []ReceivedPacket{},
		tracer:   tracerProvider.Tracer(sioserver_instrumentation_id),
		logger:   logger,
	}
	// Gauge which watches the number of sessions with an open connection
	activeSessionsGauge, err := meter.Int64ObservableGauge(sioserver_metric_active_sessions, metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
		io.Observe(int64(srv.ActiveSessions()))
		return nil
	}))
	if err != nil {
		return nil, err
	}
	// Counter which records the number of handshakes served
	handshakesCounter, err := meter.Int64ObservableCounter(sioserver_metric_handshakes_counter, metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
		io.Observe(srv.Handshakes())
		return nil
	}))
	if err != nil {
		return nil, err
	}
	packetsReceived, err := meter.Int64Counter(sioserver_metric_packets_received)
	if err != nil {
		return nil, err
	}
	srv.instruments = &socketIOServerInstruments{
		activeSessionsGauge: activeSessionsGauge,
		handshakesCounter:   handshakesCounter,
		packetsReceived:     packetsReceived,
	}
	httpServer.Handler = srv
	return srv, nil
}

// # Description
//
// Start the server. The listener is bound before Start returns so URL can be used right away.
func (srv *SocketIOServer) Start() error {
	_, span := srv.tracer.Start(context.Background(), sioserver_span_start, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String(sioserver_span_attr_host, srv.httpServer.Addr),
	))
	defer span.End()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.started {
		err := fmt.Errorf("server already started")
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	listener, err := net.Listen("tcp", srv.httpServer.Addr)
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", srv.httpServer.Addr, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	srv.listener = listener
	srv.serverCtx, srv.cancelServerCtx = context.WithCancel(context.Background())
	srv.started = true
	go srv.httpServer.Serve(listener)
	srv.logger.Info("socket.io server started", zap.String("addr", listener.Addr().String()))
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// # Description
//
// Stop the server: open connections are closed with a going away close message and the HTTP
// server is shut down.
//
// # Returns
//
// Nil in case of success, an error otherwise.
func (srv *SocketIOServer) Stop() error {
	ctx, span := srv.tracer.Start(context.Background(), sioserver_span_stop, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	srv.mu.Lock()
	if !srv.started {
		srv.mu.Unlock()
		err := fmt.Errorf("server not started")
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	srv.started = false
	srv.cancelServerCtx()
	sessions := []*clientSession{}
	for _, session := range srv.sessions {
		if session.conn != nil {
			sessions = append(sessions, session)
		}
	}
	srv.mu.Unlock()
	for _, session := range sessions {
		session.close(websocket.CloseGoingAway, "server stopped")
	}
	stopCtx, cancel := context.WithTimeout(ctx, sioserver_shutdown_timeout*time.Second)
	defer cancel()
	err := srv.httpServer.Shutdown(stopCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// Base URL of the started server (http://host:port). Empty if the server has not started.
func (srv *SocketIOServer) URL() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listener == nil {
		return ""
	}
	return "http://" + srv.listener.Addr().String()
}

// Force the status code used to answer handshakes. 0 or 200 restore normal handshakes.
func (srv *SocketIOServer) SetHandshakeStatus(status int) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.handshakeStatus = status
}

// Number of handshakes served since the server has been created.
func (srv *SocketIOServer) Handshakes() int64 {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.handshakes
}

// Number of sessions with an open websocket connection.
func (srv *SocketIOServer) ActiveSessions() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	count := 0
	for _, session := range srv.sessions {
		if session.conn != nil {
			count++
		}
	}
	return count
}

// Copy of the packets received so far, in reception order.
func (srv *SocketIOServer) Received() []ReceivedPacket {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]ReceivedPacket{}, srv.received...)
}

// Return true if a packet equal to raw has been received.
func (srv *SocketIOServer) HasReceived(raw string) bool {
	for _, packet := range srv.Received() {
		if packet.Raw == raw {
			return true
		}
	}
	return false
}

// # Description
//
// Send a raw packet to all sessions with an open connection.
//
// # Returns
//
// The number of sessions the packet has been sent to.
func (srv *SocketIOServer) Broadcast(raw string) int {
	_, span := srv.tracer.Start(context.Background(), sioserver_span_broadcast, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String(sioserver_span_attr_packet, raw),
	))
	defer span.End()
	count := 0
	for _, session := range srv.connectedSessions() {
		if err := session.write(raw); err != nil {
			span.RecordError(err)
			continue
		}
		count++
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return count
}

// # Description
//
// Close the network connection of all sessions without close message.
//
// # Returns
//
// The number of dropped connections.
func (srv *SocketIOServer) DropConnections() int {
	_, span := srv.tracer.Start(context.Background(), sioserver_span_drop_connections, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	sessions := srv.connectedSessions()
	for _, session := range sessions {
		session.conn.UnderlyingConn().Close()
		span.AddEvent(sioserver_event_dropped_connection, trace.WithAttributes(
			attribute.String(sioserver_span_attr_session_id, session.sessionId),
		))
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return len(sessions)
}

// Sessions with an open connection.
func (srv *SocketIOServer) connectedSessions() []*clientSession {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	sessions := []*clientSession{}
	for _, session := range srv.sessions {
		if session.conn != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

// # Description
//
// Server handler which serves handshakes and websocket transports.
func (srv *SocketIOServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := "/"
	if trimmed := strings.Trim(srv.opts.HandshakePath, "/"); trimmed != "" {
		base += trimmed + "/"
	}
	if !strings.HasPrefix(r.URL.Path+"/", base) {
		http.NotFound(w, r)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(base, "/")), "/")
	if rest == "" {
		srv.handshake(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[0] == sioserver_websocket_transport {
		srv.accept(w, r, parts[1])
		return
	}
	http.NotFound(w, r)
}

// Negotiate a new session.
func (srv *SocketIOServer) handshake(w http.ResponseWriter, r *http.Request) {
	_, span := srv.tracer.Start(r.Context(), sioserver_span_handshake, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	srv.mu.Lock()
	srv.handshakes++
	status := srv.handshakeStatus
	if status != 0 && status != http.StatusOK {
		srv.mu.Unlock()
		span.SetStatus(codes.Error, codes.Error.String())
		http.Error(w, sioserver_handshake_rejected_response, status)
		return
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	srv.sessions[id] = &clientSession{sessionId: id}
	srv.mu.Unlock()
	span.SetAttributes(attribute.String(sioserver_span_attr_session_id, id))
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%s:%s:%s:%s", id,
		formatSeconds(srv.opts.HeartbeatTimeout),
		formatSeconds(srv.opts.CloseTimeout),
		strings.Join(srv.opts.Transports, ","))
	srv.logger.Debug("session negotiated", zap.String("session_id", id))
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Format a duration as a number of seconds. 0 gives an empty value.
func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return strconv.Itoa(int(d / time.Second))
}

// Open the websocket transport of a negotiated session.
func (srv *SocketIOServer) accept(w http.ResponseWriter, r *http.Request, id string) {
	_, span := srv.tracer.Start(r.Context(), sioserver_span_accept, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String(sioserver_span_attr_session_id, id),
	))
	defer span.End()
	srv.mu.Lock()
	session, found := srv.sessions[id]
	if !found || session.conn != nil || !srv.started {
		srv.mu.Unlock()
		span.SetStatus(codes.Error, codes.Error.String())
		http.Error(w, sioserver_unknown_session_reason, http.StatusForbidden)
		return
	}
	srv.mu.Unlock()
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		srv.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	srv.mu.Lock()
	session.conn = conn
	session.ctx, session.cancel = context.WithCancel(srv.serverCtx)
	srv.mu.Unlock()
	if err := session.write("1::"); err != nil {
		span.RecordError(err)
	}
	if srv.opts.HeartbeatInterval > 0 {
		go session.heartbeat(srv.opts.HeartbeatInterval)
	}
	go srv.run(session)
	span.SetStatus(codes.Ok, codes.Ok.String())
}

/*****************************************************************************/
/* CLIENT SESSION MANAGEMENT                                                 */
/*****************************************************************************/

// Read packets until the connection is closed.
func (srv *SocketIOServer) run(session *clientSession) {
	defer func() {
		session.cancel()
		session.conn.Close()
		srv.mu.Lock()
		delete(srv.sessions, session.sessionId)
		srv.mu.Unlock()
		srv.logger.Debug("session closed", zap.String("session_id", session.sessionId))
	}()
	for {
		msgType, msg, err := session.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		srv.record(session, string(msg))
		if !srv.handle(session, string(msg)) {
			return
		}
	}
}

// Record a received packet.
func (srv *SocketIOServer) record(session *clientSession, raw string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.received) >= sioserver_max_recorded_packets {
		srv.received = srv.received[1:]
	}
	srv.received = append(srv.received, ReceivedPacket{SessionID: session.sessionId, Raw: raw})
}

// # Description
//
// Handle a packet received from the client.
//
// # Returns
//
// False if the connection must be closed.
func (srv *SocketIOServer) handle(session *clientSession, raw string) bool {
	ctx, span := srv.tracer.Start(session.ctx, sioserver_span_handle, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String(sioserver_span_attr_session_id, session.sessionId),
		attribute.String(sioserver_span_attr_packet, raw),
	))
	defer span.End()
	packet, err := sioclient.ParsePacket(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		session.write("7:::malformed packet")
		return true
	}
	srv.instruments.packetsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("type", packet.Type.String())))
	span.SetStatus(codes.Ok, codes.Ok.String())
	switch packet.Type {
	case sioclient.PacketTypeDisconnect:
		if packet.Endpoint == "" {
			span.AddEvent(sioserver_event_session_exit)
			return false
		}
	case sioclient.PacketTypeConnect:
		session.write("1::" + packet.Endpoint)
	case sioclient.PacketTypeMessage:
		session.echo(packet, packet.Data, func() string {
			arg, _ := json.Marshal(packet.Data)
			return "[" + string(arg) + "]"
		})
	case sioclient.PacketTypeJSON:
		session.echo(packet, packet.Data, func() string { return "[" + packet.Data + "]" })
	case sioclient.PacketTypeEvent:
		return session.handleEvent(packet)
	}
	return true
}

// Echo a message packet and ack it when requested. args builds the ack arguments.
func (session *clientSession) echo(packet *sioclient.Packet, data string, args func() string) {
	session.write((&sioclient.Packet{Type: packet.Type, AckID: -1, Endpoint: packet.Endpoint, Data: data}).Encode())
	session.ack(packet, args)
}

// Ack a packet when requested.
func (session *clientSession) ack(packet *sioclient.Packet, args func() string) {
	if packet.AckID < 0 {
		return
	}
	data := strconv.Itoa(packet.AckID)
	if packet.AckData {
		data += "+" + args()
	}
	session.write((&sioclient.Packet{Type: sioclient.PacketTypeAck, AckID: -1, Data: data}).Encode())
}

// Payload of an event packet.
type eventPayload struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

// Handle an event: commands or echo.
func (session *clientSession) handleEvent(packet *sioclient.Packet) bool {
	var payload eventPayload
	if err := json.Unmarshal([]byte(packet.Data), &payload); err != nil {
		session.write((&sioclient.Packet{Type: sioclient.PacketTypeError, AckID: -1, Endpoint: packet.Endpoint, Data: "malformed event"}).Encode())
		return true
	}
	if payload.Args == nil {
		payload.Args = []json.RawMessage{}
	}
	args := func() string {
		raw, _ := json.Marshal(payload.Args)
		return string(raw)
	}
	switch payload.Name {
	case sioserver_event_close_command:
		session.ack(packet, args)
		session.close(websocket.CloseNormalClosure, "bye")
		return false
	case sioserver_event_disconnect_command:
		session.ack(packet, args)
		session.write((&sioclient.Packet{Type: sioclient.PacketTypeDisconnect, AckID: -1, Endpoint: packet.Endpoint}).Encode())
	case sioserver_event_error_command:
		session.ack(packet, args)
		session.write((&sioclient.Packet{Type: sioclient.PacketTypeError, AckID: -1, Endpoint: packet.Endpoint, Data: "requested+retry"}).Encode())
	default:
		raw, _ := json.Marshal(payload)
		session.echo(packet, string(raw), args)
	}
	return true
}

// Send heartbeats until the connection is closed.
func (session *clientSession) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-session.ctx.Done():
			return
		case <-ticker.C:
			if err := session.write("2::"); err != nil {
				return
			}
		}
	}
}

// Write a text message.
func (session *clientSession) write(raw string) error {
	session.writeMu.Lock()
	defer session.writeMu.Unlock()
	session.conn.SetWriteDeadline(time.Now().Add(sioserver_write_timeout * time.Second))
	return session.conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

// Send a close message and close the connection.
func (session *clientSession) close(code int, reason string) {
	if session.conn == nil {
		return
	}
	session.writeMu.Lock()
	session.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(sioserver_write_timeout*time.Second))
	session.writeMu.Unlock()
	session.conn.Close()
}
