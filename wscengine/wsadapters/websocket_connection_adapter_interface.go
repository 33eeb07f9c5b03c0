// The package defines the interface the websocket transport expects from the connection layer
// (socket, TLS, opening handshake and frame codec).
package wsadapters

import (
	"context"
	"net/url"

	"github.com/gbdevw/gowsio/wshandshake"
)

// Interface which describes the adapter methods and behaviour that the websocket transport
// expects from the underlying websocket connection.
//
// Adapters are assumed to be thread-safe: Write, Ping and Close can be called concurrently with a
// goroutine blocked in Read.
type WebsocketConnectionAdapterInterface interface {
	// # Description
	//
	// Dial opens a connection to the websocket server and performs a WebSocket handshake.
	//
	// # Expected behaviour
	//
	//	- Dial MUST block until websocket handshake is complete. TLS must be handled by the
	//	  adapter.
	//
	//	- Dial MUST NOT return the underlying websocket connection. The underlying connection
	//	  must be kept internally by the adapter in order to be used later by other methods.
	//
	//	- Dial MUST return an error in case a connection has already been established and Close
	//	  method has not been called yet.
	//
	//	- Dial MUST reject a handshake response which is not 101 or whose Sec-WebSocket-Accept
	//	  does not match the nonce that was sent.
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing/timeout purpose
	//	- target: Target server URL (ws or wss)
	//
	// # Returns
	//
	// The validated server response to websocket handshake or an error if any.
	Dial(ctx context.Context, target *url.URL) (*wshandshake.Response, error)
	// # Description
	//
	// Send a close message with the provided status code and an optional close reason and drop
	// the websocket connection.
	//
	// # Expected behaviour
	//
	//	- Close MUST be blocking until close message has been sent to the server.
	//	- Close MUST unblock a goroutine blocked in Read.
	//	- Close MUST return a (wrapped) net.ErrClosed error in case connection is already closed.
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing purpose
	//	- code: Status code to use in close message
	//	- reason: Optional reason joined in close message. Can be empty.
	//
	// # Returns
	//
	//	- nil in case of success
	//	- error: server unreachable, connection already closed, ...
	Close(ctx context.Context, code StatusCode, reason string) error
	// # Description
	//
	// Send a Ping message to the websocket server and block until a Pong response is received, a
	// timeout occurs, or connection is closed.
	//
	// # Expected behaviour
	//
	//	- A concurrent goroutine must be reading for the Pong to be detected.
	//
	//	- Ping MUST return an error if connection is closed or if context has expired. In this
	//	  later case, Ping MUST return the context error.
	//
	// # Inputs
	//
	//	- ctx: context used for tracing/timeout purpose.
	//
	// # Returns
	//
	// - nil in case of success: if a Ping message is sent to the server and if a Pong is received.
	// - error: connection is closed, context timeout/cancellation, ...
	Ping(ctx context.Context) error
	// # Description
	//
	// Read a single message from the websocket server. Read blocks until a message is received
	// from the server or until connection closes.
	//
	// # Expected behaviour
	//
	//	- Read MUST reassemble fragmented messages.
	//
	//	- Read MUST NOT return close, ping, pong and continuation frames. A ping MUST be answered
	//	  with a pong carrying the same payload.
	//
	//	- Read MUST return a WebsocketCloseError either if a close message is read or if connection
	//	  is closed without a close message. In the later case, the 1006 status code MUST be used.
	//
	//	- Read MUST return a wsframe.FrameError when the stream is malformed.
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing purpose
	//
	// # Returns
	//
	//	- MessageType: received message type (Binary | Text)
	//	- []bytes: Message content
	//	- error: in case of connection closure or failure.
	Read(ctx context.Context) (MessageType, []byte, error)
	// # Description
	//
	// Write a single message to the websocket server as one masked frame. Write blocks until
	// message is sent to the server or until an error occurs.
	//
	// # Expected behaviour
	//
	//	- Concurrent writes MUST NOT interleave on the wire.
	//
	//	- Write MUST NOT handle sending control frames like Close, Ping, etc...
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing/timeout purpose
	//	- MessageType: message type (Binary | Text)
	//	- []bytes: Message content
	//
	// # Returns
	//
	//	- error: in case of connection closure, context timeout/cancellation or failure.
	Write(ctx context.Context, msgType MessageType, msg []byte) error
	// # Description
	//
	// Return the underlying connection if any. Returned value has to be type asserted.
	GetUnderlyingWebsocketConnection() any
}
