// Package which contains a WebsocketConnectionAdapterInterface implementation built directly on
// top of a TCP/TLS socket, the wshandshake opening handshake and the wsframe codec.
package wsadapterrfc6455

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wsframe"
	"github.com/gbdevw/gowsio/wshandshake"
)

// Error returned (wrapped in a wsadapters.TransportError) when the certificate trust policy
// rejects the server certificate chain.
var ErrCertificateRejected = errors.New("server certificate rejected by trust policy")

// Adapter which speaks RFC6455 over a raw socket.
type RFC6455WebsocketConnectionAdapter struct {
	// Current connection, nil when no connection is up
	conn *connection
	// Adapter options
	opts *AdapterConfigurationOptions
	// Internal mutex
	mu sync.Mutex
}

// State of a single established connection.
type connection struct {
	// Underlying socket
	netConn net.Conn
	// Frame decoder over the buffered socket reader
	decoder *wsframe.Decoder
	// Serializes every frame written on the socket
	writeMu sync.Mutex
	// Set once a close frame has been written. Guarded by writeMu.
	closeSent bool
	// Close code and reason used when the connection has been closed locally. Guarded by writeMu.
	localClose *wsadapters.WebsocketCloseError
	// Closed when the connection is torn down
	closed chan struct{}
	// Ensures closed is closed once
	closeOnce sync.Once
	// Pending Ping calls waiting for a pong
	pingMu      sync.Mutex
	pingWaiters []chan struct{}
}

// # Description
//
// Factory which creates a new RFC6455WebsocketConnectionAdapter.
//
// # Inputs
//
//   - opts: Adapter options. If nil, default options are used.
//
// # Returns
//
// New adapter or an error if options are invalid.
func NewRFC6455WebsocketConnectionAdapter(opts *AdapterConfigurationOptions) (*RFC6455WebsocketConnectionAdapter, error) {
	if opts == nil {
		opts = NewAdapterConfigurationOptions()
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}
	return &RFC6455WebsocketConnectionAdapter{
		conn: nil,
		opts: opts,
		mu:   sync.Mutex{},
	}, nil
}

// # Description
//
// Dial opens a TCP (ws) or TLS (wss) socket to the server, sends the opening handshake request
// and validates the response. Default ports are 80 for ws and 443 for wss.
//
// # Inputs
//
//   - ctx: Context used for tracing/timeout purpose. Cancelling the context aborts the dial.
//   - target: Target server URL
//
// # Returns
//
// The validated handshake response or an error:
//   - wsadapters.TransportError for socket and TLS failures (ErrCertificateRejected included).
//   - wshandshake.HandshakeError when the server response is rejected.
//   - The context error if the context expires.
func (adapter *RFC6455WebsocketConnectionAdapter) Dial(ctx context.Context, target *url.URL) (*wshandshake.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn != nil {
		return nil, fmt.Errorf("a connection has already been established")
	}
	req, err := wshandshake.BuildRequest(target, adapter.opts.Header)
	if err != nil {
		return nil, err
	}
	if adapter.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, adapter.opts.DialTimeout)
		defer cancel()
	}
	netConn, err := adapter.dialSocket(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	// Abort the handshake I/O once the context is done so ctx.Err() is set when I/O fails
	stop := context.AfterFunc(ctx, func() { netConn.SetDeadline(time.Now()) })
	defer stop()
	if err := req.Write(netConn); err != nil {
		netConn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wsadapters.TransportError{Op: "handshake", Err: err}
	}
	br := bufio.NewReader(netConn)
	resp, err := wshandshake.ReadResponse(br, req.Key)
	if err != nil {
		netConn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if !stop() {
		// The context expired right after the handshake: the abort deadline may be set
		netConn.Close()
		return nil, ctx.Err()
	}
	netConn.SetDeadline(time.Time{})
	adapter.conn = &connection{
		netConn: netConn,
		decoder: wsframe.NewDecoder(br, adapter.opts.MaxMessageSize),
		closed:  make(chan struct{}),
	}
	return resp, nil
}

// Open the TCP or TLS socket.
func (adapter *RFC6455WebsocketConnectionAdapter) dialSocket(ctx context.Context, target *url.URL) (net.Conn, error) {
	host := target.Hostname()
	port := target.Port()
	if port == "" {
		port = "80"
		if target.Scheme == "wss" {
			port = "443"
		}
	}
	addr := net.JoinHostPort(host, port)
	dialer := &net.Dialer{}
	if target.Scheme != "wss" {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, wsadapters.TransportError{Op: "dial", Err: err}
		}
		return conn, nil
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: adapter.tlsConfig(host)}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		op := "dial"
		var recordErr tls.RecordHeaderError
		if errors.Is(err, ErrCertificateRejected) || errors.As(err, &recordErr) || isCertificateError(err) {
			op = "tls"
		}
		return nil, wsadapters.TransportError{Op: op, Err: err}
	}
	return conn, nil
}

// Build the TLS configuration used for a wss connection.
func (adapter *RFC6455WebsocketConnectionAdapter) tlsConfig(serverName string) *tls.Config {
	cfg := &tls.Config{}
	if adapter.opts.TLSConfig != nil {
		cfg = adapter.opts.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	if policy := adapter.opts.TrustPolicy; policy != nil {
		// The policy replaces the default chain verification
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(state tls.ConnectionState) error {
			if !policy(state.ServerName, state.PeerCertificates) {
				return ErrCertificateRejected
			}
			return nil
		}
	}
	return cfg
}

// Returns true if the error is raised by the default certificate chain verification.
func isCertificateError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var verification *tls.CertificateVerificationError
	return errors.As(err, &unknownAuthority) || errors.As(err, &hostname) ||
		errors.As(err, &invalid) || errors.As(err, &verification)
}

// # Description
//
// Send a close frame with the provided status code and reason and close the socket. Close does
// not wait for the server close frame. A goroutine blocked in Read is unblocked and gets a
// WebsocketCloseError with the provided code.
//
// # Returns
//
//   - nil in case of success
//   - An error wrapping net.ErrClosed if no connection is up.
//   - Any error which occured while writing the close frame. The socket is closed in any case.
func (adapter *RFC6455WebsocketConnectionAdapter) Close(ctx context.Context, code wsadapters.StatusCode, reason string) error {
	adapter.mu.Lock()
	conn := adapter.conn
	adapter.conn = nil
	adapter.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("close failed because no connection is up: %w", net.ErrClosed)
	}
	return conn.close(ctx, code, reason)
}

// # Description
//
// Send a ping frame and block until a pong is received, the context expires or the connection
// is closed. A concurrent goroutine must call Read for the pong to be processed.
func (adapter *RFC6455WebsocketConnectionAdapter) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("ping failed because no connection is up: %w", net.ErrClosed)
	}
	waiter := make(chan struct{})
	conn.pingMu.Lock()
	conn.pingWaiters = append(conn.pingWaiters, waiter)
	conn.pingMu.Unlock()
	if err := conn.writeControl(ctx, wsframe.OpPing, nil); err != nil {
		return err
	}
	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.closed:
		return fmt.Errorf("ping failed because connection has been closed: %w", net.ErrClosed)
	}
}

// # Description
//
// Read the next data message. Pings are answered with a pong carrying the same payload, pongs
// release pending Ping calls and a close frame is answered with a close frame before returning
// a WebsocketCloseError. The connection is dropped when Read returns an error so Dial can be
// called again.
func (adapter *RFC6455WebsocketConnectionAdapter) Read(ctx context.Context) (wsadapters.MessageType, []byte, error) {
	select {
	case <-ctx.Done():
		return -1, nil, ctx.Err()
	default:
	}
	conn := adapter.current()
	if conn == nil {
		return -1, nil, fmt.Errorf("read failed because no connection is up")
	}
	for {
		msg, err := conn.decoder.Next()
		if err != nil {
			err = conn.readError(ctx, err)
			adapter.drop(conn)
			return -1, nil, err
		}
		switch msg.Opcode {
		case wsframe.OpText:
			return wsadapters.Text, msg.Payload, nil
		case wsframe.OpBinary:
			return wsadapters.Binary, msg.Payload, nil
		case wsframe.OpPing:
			if err := conn.writeControl(ctx, wsframe.OpPong, msg.Payload); err != nil {
				err = conn.readError(ctx, err)
				adapter.drop(conn)
				return -1, nil, err
			}
		case wsframe.OpPong:
			conn.releasePingWaiters()
		case wsframe.OpClose:
			code, reason := wsframe.ParseClosePayload(msg.Payload)
			// Echo the close frame then drop the socket
			conn.close(ctx, wsadapters.StatusCode(code), reason)
			adapter.drop(conn)
			return -1, nil, wsadapters.WebsocketCloseError{
				Code:   wsadapters.StatusCode(code),
				Reason: reason,
			}
		}
	}
}

// # Description
//
// Write a single unfragmented, masked data frame. Concurrent writes are serialized.
func (adapter *RFC6455WebsocketConnectionAdapter) Write(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("write failed because no connection is up: %w", net.ErrClosed)
	}
	frame, err := wsframe.Encode(msg, msgType == wsadapters.Binary)
	if err != nil {
		return err
	}
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	if conn.closeSent {
		return fmt.Errorf("write failed because connection is closing: %w", net.ErrClosed)
	}
	return conn.writeLocked(ctx, frame, "write")
}

// Return the underlying net.Conn if any (nil otherwise).
func (adapter *RFC6455WebsocketConnectionAdapter) GetUnderlyingWebsocketConnection() any {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == nil {
		return nil
	}
	return adapter.conn.netConn
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

// Get the current connection.
func (adapter *RFC6455WebsocketConnectionAdapter) current() *connection {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	return adapter.conn
}

// Forget the provided connection if it is still the current one.
func (adapter *RFC6455WebsocketConnectionAdapter) drop(conn *connection) {
	adapter.mu.Lock()
	if adapter.conn == conn {
		adapter.conn = nil
	}
	adapter.mu.Unlock()
	conn.teardown()
}

// Write a control frame through the serialized writer.
func (conn *connection) writeControl(ctx context.Context, op wsframe.Opcode, payload []byte) error {
	frame, err := wsframe.EncodeControl(op, payload)
	if err != nil {
		return err
	}
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	if conn.closeSent {
		return fmt.Errorf("%s failed because connection is closing: %w", op, net.ErrClosed)
	}
	return conn.writeLocked(ctx, frame, op.String())
}

// Write raw frame bytes. Must be called with writeMu held. The context deadline, if any, is used
// as write deadline.
func (conn *connection) writeLocked(ctx context.Context, frame []byte, op string) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.netConn.SetWriteDeadline(deadline)
		defer conn.netConn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.netConn.Write(frame); err != nil {
		return wsadapters.TransportError{Op: op, Err: err}
	}
	return nil
}

// Send a close frame (once) and tear the socket down.
func (conn *connection) close(ctx context.Context, code wsadapters.StatusCode, reason string) error {
	conn.writeMu.Lock()
	var err error
	if !conn.closeSent {
		conn.closeSent = true
		conn.localClose = &wsadapters.WebsocketCloseError{Code: code, Reason: reason, Err: net.ErrClosed}
		var payload []byte
		// Reserved codes are never sent on the wire
		if code != wsadapters.NoStatusReceived && code != wsadapters.AbnormalClosure && code != wsadapters.TLSHandshake {
			payload = wsframe.EncodeClosePayload(uint16(code), reason)
		}
		var frame []byte
		frame, err = wsframe.EncodeControl(wsframe.OpClose, payload)
		if err == nil {
			err = conn.writeLocked(ctx, frame, "close")
		}
	}
	conn.writeMu.Unlock()
	conn.teardown()
	return err
}

// Close the socket and release pending Ping calls.
func (conn *connection) teardown() {
	conn.closeOnce.Do(func() {
		conn.netConn.Close()
		close(conn.closed)
	})
}

// Release every pending Ping call.
func (conn *connection) releasePingWaiters() {
	conn.pingMu.Lock()
	defer conn.pingMu.Unlock()
	for _, waiter := range conn.pingWaiters {
		close(waiter)
	}
	conn.pingWaiters = nil
}

// # Description
//
// Convert an error raised while reading into the error returned by Read:
//   - The socket has been closed locally: WebsocketCloseError with the local close code.
//   - The stream ended without a close frame: WebsocketCloseError with code 1006.
//   - The stream is malformed or truncated: the FrameError is returned. A close frame 1002 is
//     sent first unless the stream was truncated.
//   - Other socket errors: TransportError.
func (conn *connection) readError(ctx context.Context, err error) error {
	conn.writeMu.Lock()
	local := conn.localClose
	conn.writeMu.Unlock()
	if local != nil {
		return *local
	}
	var frameErr wsframe.FrameError
	if errors.As(err, &frameErr) {
		if !errors.Is(err, wsframe.ErrTruncatedFrame) {
			conn.close(ctx, wsadapters.ProtocolError, "protocol error")
		}
		return err
	}
	if errors.Is(err, io.EOF) {
		return wsadapters.WebsocketCloseError{
			Code:   wsadapters.AbnormalClosure,
			Reason: "websocket connection abnormal closure",
			Err:    err,
		}
	}
	var transportErr wsadapters.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return wsadapters.TransportError{Op: "read", Err: err}
}
