package wsframe

import (
	"errors"
	"fmt"
)

/*************************************************************************************************/
/* FRAME ERRORS                                                                                  */
/*************************************************************************************************/

var (
	// The 64-bit extended payload length has its most significant bit set.
	ErrMalformedLength = errors.New("malformed payload length")
	// The stream ended in the middle of a frame.
	ErrTruncatedFrame = errors.New("truncated frame")
	// A continuation frame was received without a preceding initial fragment.
	ErrUnexpectedContinuation = errors.New("unexpected continuation frame")
	// A new text/binary frame was received while a fragmented message was still open.
	ErrInterruptedFragment = errors.New("data frame received before fragmented message completed")
	// The frame uses a reserved opcode.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	// A control frame has FIN=0.
	ErrControlFragmented = errors.New("control frame must not be fragmented")
	// A control frame payload is larger than 125 bytes.
	ErrControlTooLarge = errors.New("control frame payload too large")
	// RSV1/RSV2/RSV3 bits are set while no extension has been negotiated.
	ErrReservedBits = errors.New("reserved bits must be 0")
	// The frame or the reassembled message exceeds the configured maximum size.
	ErrMessageTooLarge = errors.New("message too large")
	// A text message or a close reason is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 payload")
)

// Error returned when a frame cannot be encoded or decoded. Decode failures are fatal for the
// connection that produced the stream.
type FrameError struct {
	// Embedded error: one of the package sentinel errors, possibly wrapping an I/O error.
	Err error
	// Optional detail
	Detail string
}

func (err FrameError) Error() string {
	if err.Detail != "" {
		return fmt.Sprintf("websocket frame error: %v: %s", err.Err, err.Detail)
	}
	return fmt.Sprintf("websocket frame error: %v", err.Err)
}

func (err FrameError) Unwrap() error {
	return err.Err
}

// Helper used to build a FrameError wrapping both a sentinel and a root cause.
func wrap(sentinel error, cause error) FrameError {
	return FrameError{Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
