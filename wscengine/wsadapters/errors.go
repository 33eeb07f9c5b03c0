package wsadapters

import "fmt"

/*************************************************************************************************/
/* WEBSOCKET CLOSE ERROR                                                                         */
/*************************************************************************************************/

// Error used by websocket connection to signal connection has been closed
type WebsocketCloseError struct {
	// Status code used or received when connection has been closed. If websocket connection has
	// been closed and no close message has been received, 1006 is used.
	//
	// https://www.rfc-editor.org/rfc/rfc6455.html#section-7.1.5
	Code StatusCode
	// Optional close reason used/received when connection has been closed.
	//
	// https://www.rfc-editor.org/rfc/rfc6455.html#section-7.1.6
	Reason string
	// Embedded error if any (ex: the io.EOF which ended the stream).
	Err error
}

func (err WebsocketCloseError) Error() string {
	return fmt.Sprintf("connection has been closed: %d - %s", err.Code, err.Reason)
}

func (err WebsocketCloseError) Unwrap() error {
	return err.Err
}

/*************************************************************************************************/
/* TRANSPORT ERROR                                                                               */
/*************************************************************************************************/

// Error used to signal a failure of the socket layer: DNS resolution, TCP connect, TLS handshake,
// certificate rejection or broken pipe.
type TransportError struct {
	// Failed operation: dial, tls, handshake, read, write, ...
	Op string
	// Embedded error
	Err error
}

func (err TransportError) Error() string {
	return fmt.Sprintf("websocket transport %s failed: %v", err.Op, err.Err)
}

func (err TransportError) Unwrap() error {
	return err.Err
}
