package wscengine

import (
	"errors"
	"fmt"
)

/*************************************************************************************************/
/* SENTINELS                                                                                     */
/*************************************************************************************************/

var (
	// Error returned by Connect when the transport has already been used. A transport opens at
	// most one connection during its lifetime.
	ErrTransportAlreadyUsed = errors.New("websocket transport has already been connected")
	// Error returned by Send when the transport is not open.
	ErrTransportNotOpen = errors.New("websocket transport is not open")
)

/*************************************************************************************************/
/* TRANSPORT CONNECT ERROR                                                                       */
/*************************************************************************************************/

// Specific error type for errors which occurs when the transport opens its connection. The error
// is passed to the listener OnError callback.
type TransportConnectError struct {
	// Embedded error
	Err error
}

func (err TransportConnectError) Error() string {
	return fmt.Sprintf("websocket transport failed to connect: %v", err.Err)
}

func (err TransportConnectError) Unwrap() error {
	return err.Err
}
