package wsframe

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// Default maximum size of a reassembled message: 32 MiB.
const DefaultMaxMessageSize int64 = 32 * 1024 * 1024

// A logical message produced by the Decoder.
//
// Data messages (text/binary) are complete: fragments have been reassembled. Control messages
// (close, ping, pong) are returned as soon as they are read, even in the middle of a fragmented
// data message.
type Message struct {
	// Opcode of the first fragment: OpText, OpBinary, OpClose, OpPing or OpPong.
	Opcode Opcode
	// Message payload
	Payload []byte
}

// Returns true if the message is a close, ping or pong message.
func (msg *Message) IsControl() bool {
	return msg.Opcode.IsControl()
}

// Decoder reads frames from a stream and turns them into logical messages.
//
// A Decoder is not safe for concurrent use: a single read loop must own it.
type Decoder struct {
	// Buffered source
	r *bufio.Reader
	// Maximum size of a reassembled message (0 = unlimited)
	maxMessageSize int64
	// Opcode of the fragmented message being reassembled, OpContinuation if none
	fragmentOp Opcode
	// Accumulated fragments
	fragments []byte
}

// # Description
//
// Build a Decoder which reads from r. If r is already a *bufio.Reader it is used as-is so bytes
// buffered while reading the handshake response are not lost.
//
// # Inputs
//
//   - r: Source stream
//   - maxMessageSize: Maximum size of a reassembled message. 0 disables the limit.
func NewDecoder(r io.Reader, maxMessageSize int64) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{
		r:              br,
		maxMessageSize: maxMessageSize,
		fragmentOp:     OpContinuation,
	}
}

// # Description
//
// Read frames until a complete logical message is available and return it.
//
// # Returns
//
//   - The next message.
//   - io.EOF when the stream ends on a message boundary.
//   - A FrameError when the stream is malformed: orphan continuation, data frame interrupting a
//     fragmented message, stream truncated in the middle of a frame or fragmented message, text
//     message or close reason which is not valid UTF-8, ... Such errors are fatal for the connection.
//   - Any I/O error returned by the underlying reader.
func (d *Decoder) Next() (*Message, error) {
	for {
		f, err := ReadFrame(d.r, d.maxMessageSize)
		if err != nil {
			if err == io.EOF && d.fragmentOp != OpContinuation {
				// Stream ended in the middle of a fragmented message
				return nil, wrap(ErrTruncatedFrame, io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if f.Opcode.IsControl() {
			if f.Opcode == OpClose && len(f.Payload) > 2 && !utf8.Valid(f.Payload[2:]) {
				return nil, FrameError{Err: ErrInvalidUTF8, Detail: "close reason"}
			}
			return &Message{Opcode: f.Opcode, Payload: f.Payload}, nil
		}
		switch f.Opcode {
		case OpContinuation:
			if d.fragmentOp == OpContinuation {
				return nil, FrameError{Err: ErrUnexpectedContinuation}
			}
		default:
			if d.fragmentOp != OpContinuation {
				return nil, FrameError{Err: ErrInterruptedFragment}
			}
			if f.Fin {
				// Unfragmented message - shortcut
				return checkUTF8(&Message{Opcode: f.Opcode, Payload: f.Payload})
			}
			d.fragmentOp = f.Opcode
			d.fragments = d.fragments[:0]
		}
		if d.maxMessageSize > 0 && int64(len(d.fragments)+len(f.Payload)) > d.maxMessageSize {
			return nil, FrameError{Err: ErrMessageTooLarge}
		}
		d.fragments = append(d.fragments, f.Payload...)
		if f.Fin {
			msg := &Message{Opcode: d.fragmentOp, Payload: d.fragments}
			d.fragmentOp = OpContinuation
			d.fragments = nil
			return checkUTF8(msg)
		}
	}
}

// Text messages must carry valid UTF-8 once reassembled.
func checkUTF8(msg *Message) (*Message, error) {
	if msg.Opcode == OpText && !utf8.Valid(msg.Payload) {
		return nil, FrameError{Err: ErrInvalidUTF8}
	}
	return msg, nil
}
