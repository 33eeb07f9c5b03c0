package wsadapters

/*************************************************************************************************/
/* WEBSOCKET RELATED CONSTANTS                                                                   */
/*************************************************************************************************/

// Constants for RFC6455 defined close status codes
//
// RFC: https://www.rfc-editor.org/rfc/rfc6455.html#section-7.4.1
//
// Code names are inspired by: https://www.iana.org/assignments/websocket/websocket.xhtml
type StatusCode int

const (
	// 1000 indicates a normal closure, meaning that the purpose for
	// which the connection was established has been fulfilled.
	NormalClosure StatusCode = 1000
	// 1001 indicates that an endpoint is "going away", such as a server
	// going down or a client disconnecting on purpose.
	GoingAway StatusCode = 1001
	// 1002 indicates that an endpoint is terminating the connection due
	// to a protocol error.
	ProtocolError StatusCode = 1002
	// 1003 indicates that an endpoint has received a type of data it
	// cannot accept.
	UnsupportedData StatusCode = 1003
	// 1005 is reserved: no status code was present in the close frame.
	// It MUST NOT be sent in a close frame.
	NoStatusReceived StatusCode = 1005
	// 1006 is reserved: the connection was closed abnormally, without
	// sending or receiving a close frame. It MUST NOT be sent in a close
	// frame.
	AbnormalClosure StatusCode = 1006
	// 1007 indicates that an endpoint has received data within a message
	// that was not consistent with the type of the message.
	InvalidFramePayloadData StatusCode = 1007
	// 1008 indicates that an endpoint has received a message that
	// violates its policy.
	PolicyViolation StatusCode = 1008
	// 1009 indicates that an endpoint has received a message that is too
	// big for it to process.
	MessageTooBig StatusCode = 1009
	// 1010 indicates that the client expected the server to negotiate
	// one or more extension.
	MandatoryExtension StatusCode = 1010
	// 1011 indicates that a server encountered an unexpected condition.
	InternalError StatusCode = 1011
	// 1015 is reserved: TLS handshake failure. It MUST NOT be sent in a
	// close frame.
	TLSHandshake StatusCode = 1015
)

// Websocket message types which can be received or sent.
//
// Codes mimic RFC6455 frame opcodes. Control frames are excluded as the adapter handles
// fragmentation, close, ping and pong on its own.
//
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
type MessageType int

const (
	// Denotes a text message
	Text MessageType = iota + 1
	// Denotes a binary message
	Binary
)

func (t MessageType) String() string {
	switch t {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}
