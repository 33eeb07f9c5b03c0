// Package wshandshake implements the client side of the RFC6455 opening handshake: it builds the
// HTTP upgrade request with a random nonce and validates the server response.
//
// RFC: https://datatracker.ietf.org/doc/html/rfc6455#section-4.1
package wshandshake

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// GUID appended to the nonce before computing Sec-WebSocket-Accept.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Size of the random nonce, before base64 encoding.
const nonceSize = 16

// Header field sent in addition to the handshake headers. A list of fields is used instead of a
// map because order is preserved and duplicates are allowed on the wire.
type HeaderField struct {
	Name  string
	Value string
}

// Opening handshake request.
type Request struct {
	// Target URL (ws or wss scheme).
	URL *url.URL
	// Extra headers, written after the handshake headers, in order.
	Header []HeaderField
	// Base64 encoded nonce sent as Sec-WebSocket-Key.
	Key string
}

// Server response to a successful opening handshake.
type Response struct {
	// Always 101
	StatusCode int
	// Reason phrase from the status line
	Reason string
	// Response headers
	Header http.Header
}

// # Description
//
// Build an opening handshake request for the target URL. A fresh 16 bytes nonce is drawn from
// crypto/rand for each request.
//
// # Inputs
//
//   - target: Target URL. Scheme must be ws or wss.
//   - extra: Extra headers added to the request, in order. Can be nil.
//
// # Returns
//
// The request or an error if the URL is not a websocket URL, if an extra header has an invalid
// name or a value which contains control characters (CR/LF included) or if the nonce cannot be
// generated.
func BuildRequest(target *url.URL, extra []HeaderField) (*Request, error) {
	if target == nil {
		return nil, fmt.Errorf("target url is nil")
	}
	if target.Scheme != "ws" && target.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported url scheme %q: expected ws or wss", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("target url has no host")
	}
	for _, field := range extra {
		if !httpguts.ValidHeaderFieldName(field.Name) {
			return nil, fmt.Errorf("invalid header name %q", field.Name)
		}
		if !httpguts.ValidHeaderFieldValue(field.Value) {
			return nil, fmt.Errorf("invalid value for header %q", field.Name)
		}
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate handshake nonce: %w", err)
	}
	return &Request{
		URL:    target,
		Header: append([]HeaderField(nil), extra...),
		Key:    base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// # Description
//
// Write the request to w:
//
//	GET <path?query> HTTP/1.1
//	Upgrade: websocket
//	Connection: Upgrade
//	Host: <host[:port]>
//	Origin: <http|https>://<host[:port]>
//	Sec-WebSocket-Key: <key>
//	Sec-WebSocket-Version: 13
//	<extra headers>
//
// The request is buffered and written in a single call.
func (req *Request) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", req.URL.RequestURI())
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Host: %s\r\n", req.URL.Host)
	fmt.Fprintf(&b, "Origin: %s\r\n", Origin(req.URL))
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", req.Key)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	for _, field := range req.Header {
		fmt.Fprintf(&b, "%s: %s\r\n", field.Name, field.Value)
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Origin derived from a websocket URL: ws becomes http and wss becomes https.
func Origin(target *url.URL) string {
	scheme := "http"
	if target.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + target.Host
}

// # Description
//
// Compute the expected Sec-WebSocket-Accept value for a nonce:
//
//	base64(SHA-1(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
func ComputeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// # Description
//
// Read the server response from br and validate it. Reading stops right after the blank line
// which ends the header block: frames sent by the server right after the response stay buffered
// in br.
//
// # Inputs
//
//   - br: Buffered reader over the connection. It must be reused to read frames afterwards.
//   - key: Nonce sent in the request.
//
// # Returns
//
// The validated response or an error (HandshakeError for rejected responses, I/O errors as-is).
func ReadResponse(br *bufio.Reader, key string) (*Response, error) {
	tp := textproto.NewReader(br)
	statusLine, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			return nil, HandshakeError{Err: fmt.Errorf("%w: %w", ErrMalformedStatusLine, io.ErrUnexpectedEOF)}
		}
		return nil, err
	}
	header, err := tp.ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, HandshakeError{Err: fmt.Errorf("failed to read response headers: %w", err)}
	}
	return ValidateResponse(statusLine, http.Header(header), key)
}

// # Description
//
// Validate a handshake response. The response is accepted if and only if the status is 101 and
// Sec-WebSocket-Accept matches the digest of the key that was sent. No other header is checked.
//
// # Inputs
//
//   - statusLine: Raw status line, e.g. "HTTP/1.1 101 Switching Protocols".
//   - header: Response headers.
//   - key: Nonce sent in the request.
//
// # Returns
//
// The response or a HandshakeError wrapping ErrMalformedStatusLine, ErrUnexpectedStatus,
// ErrMissingAccept or ErrAcceptMismatch.
func ValidateResponse(statusLine string, header http.Header, key string) (*Response, error) {
	code, reason, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, HandshakeError{Err: err}
	}
	if code != http.StatusSwitchingProtocols {
		return nil, HandshakeError{StatusCode: code, Reason: reason, Err: ErrUnexpectedStatus}
	}
	accept := header.Get("Sec-WebSocket-Accept")
	if accept == "" {
		return nil, HandshakeError{StatusCode: code, Reason: reason, Err: ErrMissingAccept}
	}
	if strings.TrimSpace(accept) != ComputeAccept(key) {
		return nil, HandshakeError{StatusCode: code, Reason: reason, Err: ErrAcceptMismatch}
	}
	return &Response{StatusCode: code, Reason: reason, Header: header}, nil
}

// Parse "HTTP/1.x <code> [reason]".
func parseStatusLine(line string) (int, string, error) {
	proto, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}
	rawCode, reason, _ := strings.Cut(rest, " ")
	if len(rawCode) != 3 {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}
	code, err := strconv.Atoi(rawCode)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}
	return code, reason, nil
}
