package wshandshake

import (
	"errors"
	"fmt"
)

/*************************************************************************************************/
/* HANDSHAKE ERRORS                                                                              */
/*************************************************************************************************/

var (
	// The response status line is absent or cannot be parsed.
	ErrMalformedStatusLine = errors.New("malformed status line")
	// The server answered with a status other than 101 Switching Protocols.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// The response has no Sec-WebSocket-Accept header.
	ErrMissingAccept = errors.New("missing Sec-WebSocket-Accept header")
	// The Sec-WebSocket-Accept header does not match the digest of the nonce that was sent.
	ErrAcceptMismatch = errors.New("Sec-WebSocket-Accept does not match request key")
)

// Error returned when the server response to the opening handshake is rejected.
type HandshakeError struct {
	// Status code parsed from the response, 0 if the status line is malformed.
	StatusCode int
	// Reason phrase parsed from the response status line, if any.
	Reason string
	// Embedded error: one of the package sentinel errors or an I/O error.
	Err error
}

func (err HandshakeError) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("websocket handshake failed: %d %s: %v", err.StatusCode, err.Reason, err.Err)
	}
	return fmt.Sprintf("websocket handshake failed: %v", err.Err)
}

func (err HandshakeError) Unwrap() error {
	return err.Err
}
