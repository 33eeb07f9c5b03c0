package sioclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default path of the Socket.IO 0.9 handshake endpoint.
const DefaultHandshakePath = "/socket.io/1/"

// Timeout of the default HTTP client used by HTTPBootstrapper.
const DefaultBootstrapTimeout = 30 * time.Second

// Maximum size of a handshake response body.
const maxHandshakeResponseSize = 4096

/*************************************************************************************************/
/* HANDSHAKE                                                                                     */
/*************************************************************************************************/

// Result of the session negotiation.
type Handshake struct {
	// URL used to negotiate the session.
	URL *url.URL
	// Session ID
	SessionID string
	// Heartbeat timeout negotiated with the server. 0 disables heartbeats.
	HeartbeatTimeout time.Duration
	// Close timeout negotiated with the server. 0 if not provided.
	CloseTimeout time.Duration
	// Transports offered by the server.
	Transports []string
}

// Return the interval between two heartbeats: half the heartbeat timeout.
func (hs *Handshake) HeartbeatInterval() time.Duration {
	return hs.HeartbeatTimeout / 2
}

// Return the URL of the websocket transport of the negotiated session.
func (hs *Handshake) WebsocketURL() *url.URL {
	return WebsocketURL(hs.URL, hs.SessionID)
}

// # Description
//
// Parse a handshake response: `sessionId:heartbeatTimeout:closeTimeout:transports`. Timeouts
// are in seconds and can be empty (disabled). Transports is a comma separated list which must
// contain "websocket".
//
// # Returns
//
// The parsed handshake (URL is not set) or a BootstrapError which wraps ErrMalformedHandshake or
// ErrWebsocketUnsupported.
func ParseHandshake(body string) (*Handshake, error) {
	parts := strings.Split(strings.TrimSpace(body), ":")
	if len(parts) < 4 || parts[0] == "" {
		return nil, BootstrapError{Err: fmt.Errorf("%w: %q", ErrMalformedHandshake, truncate(body, 64))}
	}
	heartbeat, err := parseSeconds(parts[1])
	if err != nil {
		return nil, BootstrapError{Err: fmt.Errorf("%w: heartbeat timeout: %w", ErrMalformedHandshake, err)}
	}
	closeTimeout, err := parseSeconds(parts[2])
	if err != nil {
		return nil, BootstrapError{Err: fmt.Errorf("%w: close timeout: %w", ErrMalformedHandshake, err)}
	}
	transports := strings.Split(parts[3], ",")
	supported := false
	for i, t := range transports {
		transports[i] = strings.TrimSpace(t)
		if transports[i] == "websocket" {
			supported = true
		}
	}
	if !supported {
		return nil, BootstrapError{Err: fmt.Errorf("%w: offered transports are %q", ErrWebsocketUnsupported, parts[3])}
	}
	return &Handshake{
		SessionID:        parts[0],
		HeartbeatTimeout: heartbeat,
		CloseTimeout:     closeTimeout,
		Transports:       transports,
	}, nil
}

// Parse a number of seconds. An empty value is 0.
func parseSeconds(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative value %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// # Description
//
// Build the handshake URL from the server base URL: the handshake path is appended to the base
// URL path. Query parameters of the base URL are kept.
func HandshakeURL(base *url.URL, handshakePath string) *url.URL {
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(handshakePath, "/")
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	u.Fragment = ""
	return &u
}

// # Description
//
// Build the websocket transport URL of a session: `websocket/<sessionId>/` is appended to the
// handshake URL path and the scheme is converted (http -> ws, https -> wss).
func WebsocketURL(handshakeURL *url.URL, sessionID string) *url.URL {
	u := *handshakeURL
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path.Join(u.Path, "websocket", sessionID) + "/"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

/*************************************************************************************************/
/* BOOTSTRAPPER                                                                                  */
/*************************************************************************************************/

// Interface of the collaborator used to negotiate a session before the websocket transport is
// opened.
type Bootstrapper interface {
	// Negotiate a session with the server located at the provided base URL.
	Bootstrap(ctx context.Context, base *url.URL) (*Handshake, error)
}

// Bootstrapper which negotiates sessions with a HTTP POST on the handshake endpoint.
type HTTPBootstrapper struct {
	// HTTP client
	client *http.Client
	// Handshake endpoint path
	handshakePath string
	// Additional headers
	header http.Header
	// Tracer
	tracer trace.Tracer
}

// # Description
//
// Factory which creates a new HTTPBootstrapper.
//
// # Inputs
//
//   - client: HTTP client to use. If nil, a client with a 30s timeout and an instrumented
//     transport is used.
//   - handshakePath: Path of the handshake endpoint. If empty, DefaultHandshakePath is used.
//   - header: Additional headers sent with the handshake request. Can be nil.
//   - tracerProvider: Tracer provider to use. If nil, the global tracer provider is used.
func NewHTTPBootstrapper(client *http.Client, handshakePath string, header http.Header, tracerProvider trace.TracerProvider) *HTTPBootstrapper {
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	if client == nil {
		client = &http.Client{
			Timeout:   DefaultBootstrapTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tracerProvider)),
		}
	}
	if handshakePath == "" {
		handshakePath = DefaultHandshakePath
	}
	return &HTTPBootstrapper{
		client:        client,
		handshakePath: handshakePath,
		header:        header,
		tracer:        tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
	}
}

// # Description
//
// POST the handshake endpoint and parse the response.
//
// # Returns
//
// The handshake or a BootstrapError if the request fails, if the server does not answer with
// 200 or if the response cannot be parsed.
func (b *HTTPBootstrapper) Bootstrap(ctx context.Context, base *url.URL) (*Handshake, error) {
	target := HandshakeURL(base, b.handshakePath)
	ctx, span := b.tracer.Start(ctx, spanBootstrap,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(attrURL, target.Redacted())))
	defer span.End()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return nil, handleError(BootstrapError{Err: err}, span, codes.Error, codes.Error.String())
	}
	for name, values := range b.header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, handleError(BootstrapError{Err: err}, span, codes.Error, codes.Error.String())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHandshakeResponseSize))
	if err != nil {
		return nil, handleError(BootstrapError{StatusCode: resp.StatusCode, Err: err}, span, codes.Error, codes.Error.String())
	}
	if resp.StatusCode != http.StatusOK {
		err = BootstrapError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", truncate(strings.TrimSpace(string(body)), 64)),
		}
		return nil, handleError(err, span, codes.Error, codes.Error.String())
	}
	hs, err := ParseHandshake(string(body))
	if err != nil {
		return nil, handleError(err, span, codes.Error, codes.Error.String())
	}
	hs.URL = target
	span.SetAttributes(
		attribute.String(attrSessionId, hs.SessionID),
		attribute.Int64(attrHeartbeatMs, hs.HeartbeatTimeout.Milliseconds()))
	span.SetStatus(codes.Ok, codes.Ok.String())
	return hs, nil
}
