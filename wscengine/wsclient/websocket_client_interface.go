// Package wsclient defines the listener interface the websocket transport calls on connection
// lifecycle events and incoming messages.
package wsclient

import (
	"context"

	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wshandshake"
)

// Structure which holds data for a websocket close message.
type CloseMessageDetails struct {
	// Close reason code
	CloseReason wsadapters.StatusCode
	// Close reason message. Can be empty.
	CloseMessage string
}

// # Description
//
// Interface which defines callbacks called by the websocket transport.
//
// All callbacks are called from the transport goroutine, in order: OnConnect, then OnMessage for
// each message read, then exactly one terminal callback (OnDisconnect or OnError). If the
// connection cannot be opened, OnError is the only callback called.
//
// Callbacks block the transport read loop: long running work must be handed over to another
// goroutine.
type WebsocketClientInterface interface {
	// # Description
	//
	// Callback called once the opening handshake has completed and the transport is open.
	//
	// # Inputs
	//
	//	- ctx: context bound to the transport lifetime.
	//	- resp: Validated handshake response.
	OnConnect(ctx context.Context, resp *wshandshake.Response)

	// # Description
	//
	// Callback called for each data message read from the server. Fragmented messages are
	// reassembled and control frames are never surfaced.
	//
	// # Inputs
	//
	//	- ctx: context bound to the transport lifetime.
	//	- msgType: Message type (Text | Binary)
	//	- msg: Message content
	OnMessage(ctx context.Context, msgType wsadapters.MessageType, msg []byte)

	// # Description
	//
	// Terminal callback called when the connection has been closed: a close frame has been
	// received, the stream ended or the transport has been disconnected locally.
	//
	// # Inputs
	//
	//	- ctx: context bound to the transport lifetime.
	//	- closeMessage: Close code and reason, received or sent. 1006 is used when the stream
	//	  ended without close frame.
	//	- err: Root error which ended the read loop, if any.
	OnDisconnect(ctx context.Context, closeMessage *CloseMessageDetails, err error)

	// # Description
	//
	// Terminal callback called when the connection could not be opened (socket, TLS, handshake)
	// or when reading failed (malformed stream, network failure).
	//
	// # Inputs
	//
	//	- ctx: context bound to the transport lifetime.
	//	- err: The error
	OnError(ctx context.Context, err error)
}
