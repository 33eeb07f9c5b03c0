package sioclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

// Test suite used for session negotiation unit tests
type BootstrapUnitTestSuite struct {
	suite.Suite
}

// Run BootstrapUnitTestSuite test suite
func TestBootstrapUnitTestSuite(t *testing.T) {
	suite.Run(t, new(BootstrapUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test parsing of a valid handshake response.
func (suite *BootstrapUnitTestSuite) TestParseHandshake() {
	hs, err := ParseHandshake("abc123:60:60:websocket,xhr-polling\n")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "abc123", hs.SessionID)
	require.Equal(suite.T(), 60*time.Second, hs.HeartbeatTimeout)
	require.Equal(suite.T(), 30*time.Second, hs.HeartbeatInterval())
	require.Equal(suite.T(), 60*time.Second, hs.CloseTimeout)
	require.Equal(suite.T(), []string{"websocket", "xhr-polling"}, hs.Transports)
	// Empty timeouts disable heartbeats
	hs, err = ParseHandshake("abc123:::websocket")
	require.NoError(suite.T(), err)
	require.Zero(suite.T(), hs.HeartbeatTimeout)
	require.Zero(suite.T(), hs.CloseTimeout)
}

// Test parsing of invalid handshake responses.
func (suite *BootstrapUnitTestSuite) TestParseInvalidHandshake() {
	cases := []struct {
		body     string
		expected error
	}{
		{body: "", expected: ErrMalformedHandshake},
		{body: "abc:60:60", expected: ErrMalformedHandshake},
		{body: ":60:60:websocket", expected: ErrMalformedHandshake},
		{body: "abc:x:60:websocket", expected: ErrMalformedHandshake},
		{body: "abc:60:-1:websocket", expected: ErrMalformedHandshake},
		{body: "abc:60:60:xhr-polling,jsonp-polling", expected: ErrWebsocketUnsupported},
	}
	for _, c := range cases {
		_, err := ParseHandshake(c.body)
		require.ErrorIs(suite.T(), err, c.expected, c.body)
		var berr BootstrapError
		require.True(suite.T(), errors.As(err, &berr))
		require.Zero(suite.T(), berr.StatusCode)
	}
}

// Test handshake and websocket URL derivation.
func (suite *BootstrapUnitTestSuite) TestURLs() {
	base, err := url.Parse("https://example.com/app?token=abc")
	require.NoError(suite.T(), err)
	handshake := HandshakeURL(base, DefaultHandshakePath)
	require.Equal(suite.T(), "https://example.com/app/socket.io/1/?token=abc", handshake.String())
	ws := WebsocketURL(handshake, "sid42")
	require.Equal(suite.T(), "wss://example.com/app/socket.io/1/websocket/sid42/", ws.String())
	// Plain http and no base path
	base, err = url.Parse("http://localhost:8080")
	require.NoError(suite.T(), err)
	handshake = HandshakeURL(base, "/custom")
	require.Equal(suite.T(), "http://localhost:8080/custom/", handshake.String())
	require.Equal(suite.T(), "ws://localhost:8080/custom/websocket/abc/", WebsocketURL(handshake, "abc").String())
	// Base URL is not modified
	require.Equal(suite.T(), "http://localhost:8080", base.String())
}

// Test session negotiation against a HTTP server.
func (suite *BootstrapUnitTestSuite) TestHTTPBootstrap() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/socket.io/1/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "handshake unauthorized")
			return
		}
		fmt.Fprint(w, "sid123:15:25:websocket,flashsocket")
	}))
	defer srv.Close()
	base, err := url.Parse(srv.URL)
	require.NoError(suite.T(), err)
	header := http.Header{}
	header.Set("Authorization", "Bearer token")
	hs, err := NewHTTPBootstrapper(nil, "", header, nil).Bootstrap(context.Background(), base)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "sid123", hs.SessionID)
	require.Equal(suite.T(), 15*time.Second, hs.HeartbeatTimeout)
	require.Equal(suite.T(), srv.URL+"/socket.io/1/", hs.URL.String())
	require.Equal(suite.T(), "ws", hs.WebsocketURL().Scheme)
	require.Equal(suite.T(), "/socket.io/1/websocket/sid123/", hs.WebsocketURL().Path)
	// Missing credentials
	_, err = NewHTTPBootstrapper(srv.Client(), DefaultHandshakePath, nil, nil).Bootstrap(context.Background(), base)
	var berr BootstrapError
	require.True(suite.T(), errors.As(err, &berr))
	require.Equal(suite.T(), http.StatusUnauthorized, berr.StatusCode)
	require.Contains(suite.T(), berr.Error(), "handshake unauthorized")
	// Unknown path
	_, err = NewHTTPBootstrapper(nil, "/other/", header, nil).Bootstrap(context.Background(), base)
	require.True(suite.T(), errors.As(err, &berr))
	require.Equal(suite.T(), http.StatusNotFound, berr.StatusCode)
}

// Test session negotiation when the server cannot be reached or the context is canceled.
func (suite *BootstrapUnitTestSuite) TestHTTPBootstrapFailure() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "sid:10:10:xhr-polling")
	}))
	base, err := url.Parse(srv.URL)
	require.NoError(suite.T(), err)
	// No websocket transport
	_, err = NewHTTPBootstrapper(nil, "", nil, nil).Bootstrap(context.Background(), base)
	require.ErrorIs(suite.T(), err, ErrWebsocketUnsupported)
	// Canceled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewHTTPBootstrapper(nil, "", nil, nil).Bootstrap(ctx, base)
	require.ErrorIs(suite.T(), err, context.Canceled)
	// Server is down
	srv.Close()
	_, err = NewHTTPBootstrapper(nil, "", nil, nil).Bootstrap(context.Background(), base)
	var berr BootstrapError
	require.True(suite.T(), errors.As(err, &berr))
	require.Zero(suite.T(), berr.StatusCode)
}
