package sioclient

import (
	"context"
	"encoding/json"
)

/*************************************************************************************************/
/* EVENTS                                                                                        */
/*************************************************************************************************/

// Event delivered to a client handler. The concrete type is one of ConnectEvent, ReconnectEvent,
// MessageEvent, JSONMessageEvent, NamedEvent, ErrorEvent or DisconnectEvent.
type Event interface {
	// Event kind, used for logging and tracing.
	Kind() string
}

// Connection result of a client. Err is nil when the client is connected. When Err is not nil,
// the session could not be attached and the client has been removed from the session.
type ConnectEvent struct {
	Err error
}

// Delivered when a client which has been disconnected by a transport failure is connected again.
type ReconnectEvent struct{}

// Plain text message (3).
type MessageEvent struct {
	// Message
	Data string
	// Function used to acknowledge the message. Nil if the server has not requested an ack.
	Ack AckFunc
}

// JSON message (4).
type JSONMessageEvent struct {
	// JSON object. An empty object is used when the server sent an invalid payload.
	Data json.RawMessage
	// Function used to acknowledge the message. Nil if the server has not requested an ack.
	Ack AckFunc
}

// Named event (5).
type NamedEvent struct {
	// Event name. Empty when the server sent an invalid payload.
	Name string
	// Event arguments. Never nil.
	Args []json.RawMessage
	// Function used to acknowledge the event. Nil if the server has not requested an ack.
	Ack AckFunc
}

// Error event: server error packets (*ServerError) and asynchronous failures such as a message
// emitted while the session is not connected (ErrNotConnected).
type ErrorEvent struct {
	Err error
}

// Delivered once when a connected client is disconnected. Err is nil when the client has been
// disconnected locally.
type DisconnectEvent struct {
	Err error
}

func (ConnectEvent) Kind() string     { return "connect" }
func (ReconnectEvent) Kind() string   { return "reconnect" }
func (MessageEvent) Kind() string     { return "message" }
func (JSONMessageEvent) Kind() string { return "json" }
func (NamedEvent) Kind() string       { return "event" }
func (ErrorEvent) Kind() string       { return "error" }
func (DisconnectEvent) Kind() string  { return "disconnect" }

/*************************************************************************************************/
/* HANDLERS & CALLBACKS                                                                          */
/*************************************************************************************************/

// # Description
//
// Interface implemented by client event handlers.
//
// Events of a session are delivered one at a time, in wire order, from the session delivery
// goroutine. Handlers must not block: Session.Close must not be called from a handler.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, event Event)
}

// Adapter which allows the use of an ordinary function as EventHandler.
type EventHandlerFunc func(ctx context.Context, client *Client, event Event)

// HandleEvent calls f(ctx, client, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, client *Client, event Event) {
	f(ctx, client, event)
}

// Function used to answer an ack request of the server. Arguments are encoded as a JSON array.
// Only the first call has an effect. If the handler does not call it, the message is acked
// without arguments once the handler returns.
type AckFunc func(args ...any) error

// Callback called with the ack arguments sent by the server. Args is nil when the server acked
// without arguments or sent invalid arguments.
type AckCallback func(args []json.RawMessage)

// Callback registered with Client.On for a named event.
type NamedEventCallback func(ctx context.Context, args []json.RawMessage, ack AckFunc)
