// Package wsframe implements the RFC6455 base framing protocol used by the websocket client:
// frame encoding with client-side masking and the decoding of a byte stream into logical
// messages (reassembly of fragmented messages, control frames).
//
// The package performs no I/O on its own: callers provide the io.Reader and io.Writer.
//
// RFC: https://datatracker.ietf.org/doc/html/rfc6455#section-5
package wsframe

import "fmt"

// Frame operation code (4 bits).
//
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
type Opcode byte

const (
	// Continuation frame of a fragmented message
	OpContinuation Opcode = 0x0
	// Text data frame (UTF-8)
	OpText Opcode = 0x1
	// Binary data frame
	OpBinary Opcode = 0x2
	// Close control frame
	OpClose Opcode = 0x8
	// Ping control frame
	OpPing Opcode = 0x9
	// Pong control frame
	OpPong Opcode = 0xA
)

// Returns true for close, ping and pong opcodes (most significant opcode bit set).
func (op Opcode) IsControl() bool {
	return op&0x08 != 0
}

// Returns true if the opcode is one defined by RFC6455. Opcodes 0x3-0x7 and 0xB-0xF are reserved.
func (op Opcode) IsValid() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("reserved(0x%X)", byte(op))
	}
}
