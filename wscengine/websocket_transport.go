// Package wscengine contains the websocket transport: it owns one websocket connection opened
// through a connection adapter, runs the read loop on its own goroutine and reports connection
// lifecycle events and incoming messages to a single listener.
package wscengine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wscengine/wsclient"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

/*************************************************************************************************/
/* STATE                                                                                         */
/*************************************************************************************************/

// Websocket transport state.
type State int32

const (
	// Transport has been created, Connect has not been called.
	StateIdle State = iota
	// Connection is being opened.
	StateConnecting
	// Connection is open: messages can be sent and are being read.
	StateOpen
	// Transport is being disconnected locally.
	StateClosing
	// Connection has been closed (close frame, end of stream or local disconnect).
	StateClosed
	// Connection could not be opened or has failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Close reason used when the transport is disconnected locally.
const localDisconnectReason = "client disconnect"

/*************************************************************************************************/
/* INTERFACE                                                                                     */
/*************************************************************************************************/

// Interface implemented by websocket transports.
type WebsocketTransportInterface interface {
	// Unique transport ID.
	Id() string
	// Current state.
	State() State
	// Start opening the connection in the background.
	Connect(ctx context.Context) error
	// Send a data message.
	Send(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error
	// Close the connection. Idempotent.
	Disconnect(ctx context.Context) error
}

/*************************************************************************************************/
/* WEBSOCKET TRANSPORT                                                                           */
/*************************************************************************************************/

// Transport which manages a single websocket connection: the connection is opened in the
// background, messages are read by a dedicated goroutine and forwarded to the listener and
// exactly one terminal callback (OnDisconnect or OnError) is called once the connection ends.
//
// A transport opens at most one connection. Create a new transport to reconnect.
type WebsocketTransport struct {
	// Transport ID
	id string
	// Target websocket server URL.
	target *url.URL
	// Websocket connection adapter used to open and use the websocket connection.
	conn wsadapters.WebsocketConnectionAdapterInterface
	// Listener called by the transport.
	listener wsclient.WebsocketClientInterface
	// Configuration options used by the transport.
	opts *WebsocketTransportConfigurationOptions
	// Tracer used to instrument transport code.
	tracer trace.Tracer
	// Instruments used to record transport metrics.
	instruments *transportInstruments
	// Logger
	logger *zap.Logger
	// Internal mutex used to protect state.
	mu sync.Mutex
	// Current state
	state State
	// Cancel function used to abort the background dial.
	cancelDial context.CancelFunc
	// Channel closed once the terminal callback has returned.
	done chan struct{}
}

// Internal structure used to retain references to instruments that record transport metrics.
type transportInstruments struct {
	// Counter of data messages read
	messagesRead metric.Int64Counter
	// Counter of data messages written
	messagesWritten metric.Int64Counter
	// Counter of connections opened
	connectionsOpened metric.Int64Counter
}

// # Description
//
// Factory - Return a new, idle websocket transport.
//
// # Inputs
//
//   - target: Target websocket server URL.
//   - conn: Websocket connection adapter used to open the connection.
//   - listener: Listener called by the transport.
//   - opts: Transport configuration options. If nil, default options are used.
//   - logger: Logger to use. If nil, a no-op logger is used.
//   - tracerProvider: OpenTelemetry tracer provider to use. If nil, global TracerProvider is used.
//   - meterProvider: OpenTelemetry meter provider to use. If nil, global MeterProvider is used.
//
// # Returns
//
// A new idle websocket transport or an error if an input is nil or if options are invalid.
func NewWebsocketTransport(
	target *url.URL,
	conn wsadapters.WebsocketConnectionAdapterInterface,
	listener wsclient.WebsocketClientInterface,
	opts *WebsocketTransportConfigurationOptions,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) (*WebsocketTransport, error) {
	// Check provided URL is not nil
	if target == nil {
		return nil, fmt.Errorf("provided url is nil")
	}
	// Check provided listener is not nil
	if listener == nil {
		return nil, fmt.Errorf("provided listener is nil")
	}
	// Check provided connection adapter is not nil
	if conn == nil {
		return nil, fmt.Errorf("provided connection adapter is nil")
	}
	// Use default options if not set
	if opts == nil {
		opts = NewWebsocketTransportConfigurationOptions()
	}
	// Validate options
	err := Validate(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Get tracer & meter providers from global providers if not provided
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	instruments, err := newTransportInstruments(meterProvider.Meter(pkgName, metric.WithInstrumentationVersion(pkgVersion)))
	if err != nil {
		return nil, err
	}
	// Decorate provided connection adapter if needed
	_, ok := conn.(*wsadapters.WebsocketConnectionAdapterInstrumentationDecorator)
	if !ok {
		conn, err = wsadapters.NewWebsocketConnectionAdapterInstrumentationDecorator(conn, tracerProvider)
		if err != nil {
			return nil, err
		}
	}
	// Create tracing decorator for the listener
	decorated, err := NewWebsocketClientInstrumentationDecorator(listener, tracerProvider)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &WebsocketTransport{
		id:          id,
		target:      target,
		conn:        conn,
		listener:    decorated,
		opts:        opts,
		tracer:      tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
		instruments: instruments,
		logger:      logger.With(zap.String("transport_id", id), zap.String("target", target.String())),
		state:       StateIdle,
		cancelDial:  func() {},
		done:        make(chan struct{}),
	}, nil
}

// Create the instruments used by transports.
func newTransportInstruments(meter metric.Meter) (*transportInstruments, error) {
	messagesRead, err := meter.Int64Counter(instrMessagesRead,
		metric.WithDescription("Number of data messages read by websocket transports"))
	if err != nil {
		return nil, err
	}
	messagesWritten, err := meter.Int64Counter(instrMessagesWritten,
		metric.WithDescription("Number of data messages written by websocket transports"))
	if err != nil {
		return nil, err
	}
	connectionsOpened, err := meter.Int64Counter(instrConnectionsOpened,
		metric.WithDescription("Number of websocket connections opened by websocket transports"))
	if err != nil {
		return nil, err
	}
	return &transportInstruments{
		messagesRead:      messagesRead,
		messagesWritten:   messagesWritten,
		connectionsOpened: connectionsOpened,
	}, nil
}

// Return the transport ID.
func (transport *WebsocketTransport) Id() string {
	return transport.id
}

// Return the transport current state.
func (transport *WebsocketTransport) State() State {
	transport.mu.Lock()
	defer transport.mu.Unlock()
	return transport.state
}

// Return a channel which is closed once the transport has reached a terminal state and the
// terminal callback has returned. The channel is never closed if Connect is not called.
func (transport *WebsocketTransport) Done() <-chan struct{} {
	return transport.done
}

// # Description
//
// Start opening the websocket connection. The method does not block: the connection is opened
// by a dedicated goroutine which then runs the read loop.
//
//   - On success, the transport becomes Open and the listener OnConnect callback is called.
//   - On failure, the transport becomes Failed and the listener OnError callback is called with
//     a TransportConnectError.
//
// # Inputs
//
//   - ctx: Context used for tracing purpose. Cancelling it does not stop the transport, use
//     Disconnect instead.
//
// # Returns
//
// ErrTransportAlreadyUsed if Connect or Disconnect has already been called. The provided
// context error if it is already canceled.
func (transport *WebsocketTransport) Connect(ctx context.Context) error {
	ctx, span := transport.tracer.Start(ctx, spanTransportConnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrTransportId, transport.id)))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return handleError(err, span, codes.Error, codes.Error.String())
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.state != StateIdle {
		return handleError(ErrTransportAlreadyUsed, span, codes.Error, codes.Error.String())
	}
	transport.state = StateConnecting
	// Background tasks keep the span as parent but must outlive the caller context
	bgCtx := context.WithoutCancel(ctx)
	var dialCtx context.Context
	var cancel context.CancelFunc
	if transport.opts.ConnectTimeoutMs > 0 {
		dialCtx, cancel = context.WithTimeout(bgCtx, time.Duration(transport.opts.ConnectTimeoutMs)*time.Millisecond)
	} else {
		dialCtx, cancel = context.WithCancel(bgCtx)
	}
	transport.cancelDial = cancel
	go transport.run(bgCtx, dialCtx)
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// # Description
//
// Send a data message. Concurrent calls are serialized by the connection adapter so frames never
// interleave on the wire.
//
// # Returns
//
// ErrTransportNotOpen if the transport is not open. Any error returned by the adapter.
func (transport *WebsocketTransport) Send(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error {
	ctx, span := transport.tracer.Start(ctx, spanTransportSend,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrTransportId, transport.id),
			attribute.String(attrMsgType, msgType.String()),
			attribute.Int(attrMsgLength, len(msg)),
		))
	defer span.End()
	if state := transport.State(); state != StateOpen {
		return handleError(
			fmt.Errorf("%w: %s", ErrTransportNotOpen, state),
			span, codes.Error, codes.Error.String())
	}
	err := transport.conn.Write(ctx, msgType, msg)
	if err == nil {
		transport.instruments.messagesWritten.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMsgType, msgType.String())))
	}
	return handlePotentialError(err, span)
}

// # Description
//
// Disconnect the transport. The method is idempotent and safe to call from any state and from
// listener callbacks:
//   - Idle: the transport becomes Closed, no callback is called.
//   - Connecting: the dial is aborted. OnDisconnect is called once the dial goroutine exits.
//   - Open: a close frame (1000) is sent and the socket is closed which unblocks the read loop.
//     OnDisconnect is then called by the read loop.
//   - Closing, Closed, Failed: nothing is done.
//
// The method does not wait for the terminal callback: use Done for this purpose.
func (transport *WebsocketTransport) Disconnect(ctx context.Context) error {
	ctx, span := transport.tracer.Start(ctx, spanTransportDisconnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrTransportId, transport.id)))
	defer span.End()
	transport.mu.Lock()
	previous := transport.state
	span.SetAttributes(attribute.String(attrState, previous.String()))
	switch previous {
	case StateIdle:
		transport.state = StateClosed
		transport.mu.Unlock()
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	case StateConnecting:
		transport.state = StateClosing
		transport.mu.Unlock()
		transport.cancelDial()
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	case StateOpen:
		transport.state = StateClosing
		transport.mu.Unlock()
	default:
		transport.mu.Unlock()
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	}
	// Close the open connection
	if transport.opts.CloseTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(transport.opts.CloseTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	transport.logger.Debug("closing websocket connection")
	err := transport.conn.Close(ctx, wsadapters.NormalClosure, localDisconnectReason)
	span.AddEvent(eventConnectionClosed)
	return handlePotentialError(err, span)
}

/*************************************************************************************************/
/* BACKGROUND TASKS                                                                              */
/*************************************************************************************************/

// Open the connection and run the read loop until the connection ends.
func (transport *WebsocketTransport) run(ctx context.Context, dialCtx context.Context) {
	defer close(transport.done)
	if !transport.dial(ctx, dialCtx) {
		return
	}
	transport.readLoop(ctx)
}

// # Description
//
// Open the connection and call OnConnect on success. Call the terminal callback otherwise.
//
// # Returns
//
// True if the connection is open and the read loop must be started.
func (transport *WebsocketTransport) dial(ctx context.Context, dialCtx context.Context) bool {
	dialCtx, span := transport.tracer.Start(dialCtx, spanTransportBackgroundDial,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(attrTransportId, transport.id)))
	defer span.End()
	transport.logger.Debug("opening websocket connection")
	resp, err := transport.conn.Dial(dialCtx, transport.target)
	transport.cancelDial()
	transport.mu.Lock()
	if transport.state == StateClosing {
		// Disconnect has been called while dialing
		transport.state = StateClosed
		transport.mu.Unlock()
		if err == nil {
			transport.conn.Close(ctx, wsadapters.NormalClosure, localDisconnectReason)
		}
		span.SetStatus(codes.Ok, codes.Ok.String())
		transport.logger.Debug("websocket transport disconnected while connecting")
		transport.listener.OnDisconnect(ctx, &wsclient.CloseMessageDetails{
			CloseReason:  wsadapters.NormalClosure,
			CloseMessage: localDisconnectReason,
		}, nil)
		return false
	}
	if err != nil {
		transport.state = StateFailed
		transport.mu.Unlock()
		err = TransportConnectError{Err: err}
		handleError(err, span, codes.Error, codes.Error.String())
		transport.logger.Info("websocket transport failed to connect", zap.Error(err))
		transport.listener.OnError(ctx, err)
		return false
	}
	transport.state = StateOpen
	transport.mu.Unlock()
	transport.instruments.connectionsOpened.Add(ctx, 1)
	span.SetStatus(codes.Ok, codes.Ok.String())
	transport.logger.Debug("websocket connection opened")
	transport.listener.OnConnect(ctx, resp)
	return true
}

// Read messages until the connection ends then call the terminal callback.
func (transport *WebsocketTransport) readLoop(ctx context.Context) {
	ctx, span := transport.tracer.Start(ctx, spanTransportBackgroundRun,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrTransportId, transport.id)))
	defer span.End()
	for {
		msgType, msg, err := transport.conn.Read(ctx)
		if err != nil {
			span.AddEvent(eventReadLoopExit)
			transport.terminate(ctx, span, err)
			return
		}
		transport.instruments.messagesRead.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMsgType, msgType.String())))
		transport.listener.OnMessage(ctx, msgType, msg)
	}
}

// # Description
//
// Move the transport to its terminal state and call the matching terminal callback:
//   - A close error (close frame received or sent, end of stream) or a local disconnect results
//     in Closed and OnDisconnect.
//   - Other errors result in Failed and OnError.
func (transport *WebsocketTransport) terminate(ctx context.Context, span trace.Span, err error) {
	transport.mu.Lock()
	closing := transport.state == StateClosing
	var closeErr wsadapters.WebsocketCloseError
	isClose := errors.As(err, &closeErr)
	if isClose || closing {
		transport.state = StateClosed
	} else {
		transport.state = StateFailed
	}
	transport.mu.Unlock()
	switch {
	case isClose:
		span.SetAttributes(
			attribute.Int(attrCloseCode, int(closeErr.Code)),
			attribute.String(attrCloseReason, closeErr.Reason))
		span.SetStatus(codes.Ok, codes.Ok.String())
		transport.logger.Debug("websocket connection closed",
			zap.Int("code", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
		transport.listener.OnDisconnect(ctx, &wsclient.CloseMessageDetails{
			CloseReason:  closeErr.Code,
			CloseMessage: closeErr.Reason,
		}, err)
	case closing:
		span.SetStatus(codes.Ok, codes.Ok.String())
		transport.logger.Debug("websocket connection closed locally", zap.Error(err))
		transport.listener.OnDisconnect(ctx, &wsclient.CloseMessageDetails{
			CloseReason:  wsadapters.NormalClosure,
			CloseMessage: localDisconnectReason,
		}, err)
	default:
		handleError(err, span, codes.Error, codes.Error.String())
		transport.logger.Info("websocket connection failed", zap.Error(err))
		// Release the socket
		transport.conn.Close(ctx, wsadapters.AbnormalClosure, "")
		transport.listener.OnError(ctx, err)
	}
}
