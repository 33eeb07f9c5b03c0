package wsframe

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Payload length encoding thresholds (RFC6455 section 5.2).
const (
	// Maximum payload length of a control frame
	MaxControlPayload = 125
	// 0-125: literal length stored in the 7 bits length field
	payloadLen7Bit = 125
	// 126: length stored in the following 16 bits
	payloadLen16Bit = 126
	// 127: length stored in the following 64 bits
	payloadLen64Bit = 127
	// Hard ceiling on a single frame payload, enforced even when no limit is configured
	MaxFramePayload = 1<<31 - 1
	// Payloads larger than this are read in chunks instead of being allocated upfront
	payloadChunk = 64 * 1024
)

// A single RFC6455 frame.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Extended payload length continued, if payload len == 127  |
//	+ - - - - - - - - - - - - - - - +-------------------------------+
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------- - - - - - - - - - - - - - - - +
type Frame struct {
	// Final fragment of a message
	Fin bool
	// Frame opcode
	Opcode Opcode
	// Whether the payload is masked. Frames sent by a client are always masked, frames sent by a
	// server never are.
	Masked bool
	// Masking key, meaningful only when Masked is true
	MaskKey [4]byte
	// Unmasked payload
	Payload []byte
}

// # Description
//
// Encode a payload into one unfragmented, masked data frame (FIN=1, text or binary opcode). A
// fresh random 32 bits masking key is generated for each call.
//
// # Inputs
//
//   - payload: Message content. The slice is not modified.
//   - binary: true to use the binary opcode, false to use the text opcode.
//
// # Returns
//
// The frame wire bytes or an error if the masking key could not be generated.
func Encode(payload []byte, binary bool) ([]byte, error) {
	op := OpText
	if binary {
		op = OpBinary
	}
	return encodeMasked(op, payload)
}

// # Description
//
// Encode a masked control frame (close, ping or pong).
//
// # Returns
//
// The frame wire bytes or an error if the opcode is not a control opcode or if the payload is
// larger than 125 bytes.
func EncodeControl(op Opcode, payload []byte) ([]byte, error) {
	if !op.IsControl() || !op.IsValid() {
		return nil, FrameError{Err: ErrUnsupportedOpcode, Detail: op.String()}
	}
	if len(payload) > MaxControlPayload {
		return nil, FrameError{Err: ErrControlTooLarge, Detail: fmt.Sprintf("%d bytes", len(payload))}
	}
	return encodeMasked(op, payload)
}

func encodeMasked(op Opcode, payload []byte) ([]byte, error) {
	key, err := NewMaskKey()
	if err != nil {
		return nil, err
	}
	return AppendFrame(nil, &Frame{
		Fin:     true,
		Opcode:  op,
		Masked:  true,
		MaskKey: key,
		Payload: payload,
	}), nil
}

// Generate a new random masking key.
func NewMaskKey() ([4]byte, error) {
	var key [4]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("failed to generate masking key: %w", err)
	}
	return key, nil
}

// # Description
//
// Append the wire representation of the frame to dst and return the extended slice. The frame
// payload is copied and masked in the output when f.Masked is true: f.Payload is left untouched.
func AppendFrame(dst []byte, f *Frame) []byte {
	b0 := byte(f.Opcode) & 0x0F
	if f.Fin {
		b0 |= 0x80
	}
	var b1 byte
	if f.Masked {
		b1 |= 0x80
	}
	length := uint64(len(f.Payload))
	switch {
	case length <= payloadLen7Bit:
		dst = append(dst, b0, b1|byte(length))
	case length <= 0xFFFF:
		dst = append(dst, b0, b1|payloadLen16Bit)
		dst = binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, b0, b1|payloadLen64Bit)
		dst = binary.BigEndian.AppendUint64(dst, length)
	}
	if f.Masked {
		dst = append(dst, f.MaskKey[:]...)
	}
	start := len(dst)
	dst = append(dst, f.Payload...)
	if f.Masked {
		ApplyMask(dst[start:], f.MaskKey)
	}
	return dst
}

// Write the frame to the provided writer in a single Write call.
func WriteFrame(w io.Writer, f *Frame) error {
	if !f.Opcode.IsValid() {
		return FrameError{Err: ErrUnsupportedOpcode, Detail: f.Opcode.String()}
	}
	if f.Opcode.IsControl() {
		if !f.Fin {
			return FrameError{Err: ErrControlFragmented}
		}
		if len(f.Payload) > MaxControlPayload {
			return FrameError{Err: ErrControlTooLarge}
		}
	}
	_, err := w.Write(AppendFrame(make([]byte, 0, len(f.Payload)+14), f))
	return err
}

// # Description
//
// Read a single frame from the reader. Masked frames are unmasked in place.
//
// # Inputs
//
//   - r: Source stream. Callers should provide a buffered reader.
//   - maxPayload: Maximum accepted payload length. 0 means only MaxFramePayload applies.
//
// # Returns
//
// The decoded frame or an error:
//   - io.EOF if the stream ended cleanly on a frame boundary.
//   - A FrameError for protocol violations and streams truncated in the middle of a frame.
//   - Any other error returned by the reader (network error, ...).
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, wrap(ErrTruncatedFrame, err)
		}
		return nil, err
	}
	f := &Frame{
		Fin:    header[0]&0x80 != 0,
		Opcode: Opcode(header[0] & 0x0F),
		Masked: header[1]&0x80 != 0,
	}
	if header[0]&0x70 != 0 {
		return nil, FrameError{Err: ErrReservedBits}
	}
	if !f.Opcode.IsValid() {
		return nil, FrameError{Err: ErrUnsupportedOpcode, Detail: f.Opcode.String()}
	}
	if f.Opcode.IsControl() && !f.Fin {
		return nil, FrameError{Err: ErrControlFragmented}
	}
	// Resolve length encoding tier
	length := uint64(header[1] & 0x7F)
	switch length {
	case payloadLen16Bit:
		var ext [2]byte
		if err := readRest(r, ext[:]); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case payloadLen64Bit:
		var ext [8]byte
		if err := readRest(r, ext[:]); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
		if length&(1<<63) != 0 {
			return nil, FrameError{Err: ErrMalformedLength}
		}
	}
	if f.Opcode.IsControl() && length > MaxControlPayload {
		return nil, FrameError{Err: ErrControlTooLarge}
	}
	if length > MaxFramePayload || (maxPayload > 0 && length > uint64(maxPayload)) {
		return nil, FrameError{Err: ErrMessageTooLarge, Detail: fmt.Sprintf("%d bytes", length)}
	}
	if f.Masked {
		if err := readRest(r, f.MaskKey[:]); err != nil {
			return nil, err
		}
	}
	payload, err := readPayload(r, int64(length))
	if err != nil {
		return nil, err
	}
	f.Payload = payload
	if f.Masked {
		ApplyMask(f.Payload, f.MaskKey)
	}
	return f, nil
}

// Read bytes which belong to a frame whose header has already been read. Any EOF is a truncation.
func readRest(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wrap(ErrTruncatedFrame, io.ErrUnexpectedEOF)
		}
		return err
	}
	return nil
}

// Read a payload of the announced length. Large payloads grow with the bytes actually received so
// a peer cannot force a huge allocation by lying about the length.
func readPayload(r io.Reader, length int64) ([]byte, error) {
	if length <= payloadChunk {
		buf := make([]byte, length)
		return buf, readRest(r, buf)
	}
	buf := bytes.NewBuffer(make([]byte, 0, payloadChunk))
	if _, err := io.CopyN(buf, r, length); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, wrap(ErrTruncatedFrame, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// # Description
//
// Apply the RFC6455 masking algorithm in place:
//
//	transformed-octet-i = original-octet-i XOR masking-key-octet-(i MOD 4)
//
// Applying the same key twice restores the original data. Length never changes.
func ApplyMask(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

// Build the payload of a close frame: 2 bytes status code followed by an optional UTF-8 reason.
// The reason is truncated so the payload fits in a control frame.
func EncodeClosePayload(code uint16, reason string) []byte {
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), code)
	return append(payload, reason...)
}

// Parse a close frame payload. An empty payload yields code 1005 (no status received).
func ParseClosePayload(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return 1005, ""
	}
	return binary.BigEndian.Uint16(payload[:2]), string(payload[2:])
}
