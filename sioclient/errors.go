package sioclient

import (
	"errors"
	"fmt"
)

/*************************************************************************************************/
/* SENTINELS                                                                                     */
/*************************************************************************************************/

var (
	// Error used when a message is emitted while the session is not attached to a transport.
	// Messages are not buffered.
	ErrNotConnected = errors.New("session is not connected")
	// Error returned when a disconnected client is used.
	ErrClientDisconnected = errors.New("client has been disconnected")
	// Error returned when a closed session is used and passed to clients when the session is
	// closed.
	ErrSessionClosed = errors.New("session has been closed")
	// Error passed to clients when the server has disconnected the whole session (0::).
	ErrServerDisconnect = errors.New("server has disconnected the session")
	// Error passed to clients when the server has disconnected their endpoint (0::/endpoint).
	ErrEndpointDisconnected = errors.New("server has disconnected the endpoint")
	// Error wrapped in a BootstrapError when the server does not offer the websocket transport.
	ErrWebsocketUnsupported = errors.New("server does not support the websocket transport")
	// Error wrapped in a BootstrapError when the handshake response cannot be parsed.
	ErrMalformedHandshake = errors.New("malformed handshake response")
	// Error wrapped in a PacketError when the packet type is unknown.
	ErrUnknownPacketType = errors.New("unknown packet type")
	// Error wrapped in a PacketError when the packet has less than three fields.
	ErrMalformedPacket = errors.New("malformed packet")
	// Error wrapped in a PacketError when the packet ack field is invalid.
	ErrMalformedAck = errors.New("malformed packet ack field")
)

/*************************************************************************************************/
/* BOOTSTRAP ERROR                                                                               */
/*************************************************************************************************/

// Error returned when the session negotiation fails: HTTP failure, unexpected status code,
// malformed response or missing websocket transport.
type BootstrapError struct {
	// HTTP status code, 0 if no response has been received.
	StatusCode int
	// Embedded error
	Err error
}

func (err BootstrapError) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("session negotiation failed with status %d: %v", err.StatusCode, err.Err)
	}
	return fmt.Sprintf("session negotiation failed: %v", err.Err)
}

func (err BootstrapError) Unwrap() error {
	return err.Err
}

/*************************************************************************************************/
/* PACKET ERROR                                                                                  */
/*************************************************************************************************/

// Error returned when a session packet cannot be decoded. A PacketError received from the server
// is fatal for the underlying transport.
type PacketError struct {
	// Raw packet
	Raw string
	// Embedded error
	Err error
}

func (err PacketError) Error() string {
	return fmt.Sprintf("invalid packet %q: %v", truncate(err.Raw, 64), err.Err)
}

func (err PacketError) Unwrap() error {
	return err.Err
}

// Truncate a string for display purpose.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

/*************************************************************************************************/
/* SERVER ERROR                                                                                  */
/*************************************************************************************************/

// Error sent by the server with an error packet (7:::reason+advice).
type ServerError struct {
	// Error reason
	Reason string
	// Advice, may be empty (ex: reconnect).
	Advice string
}

func (err *ServerError) Error() string {
	if err.Advice != "" {
		return fmt.Sprintf("server error: %s (advice: %s)", err.Reason, err.Advice)
	}
	return fmt.Sprintf("server error: %s", err.Reason)
}
