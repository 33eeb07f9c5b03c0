package wscengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gbdevw/gowsio/echowsserver"
	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	wsadapterrfc6455 "github.com/gbdevw/gowsio/wscengine/wsadapters/rfc6455"
	"github.com/gbdevw/gowsio/wscengine/wsclient"
	"github.com/gbdevw/gowsio/wshandshake"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for WebsocketTransport unit tests
type WebsocketTransportUnitTestSuite struct {
	suite.Suite
	target *url.URL
}

// Run WebsocketTransportUnitTestSuite test suite
func TestWebsocketTransportUnitTestSuite(t *testing.T) {
	suite.Run(t, new(WebsocketTransportUnitTestSuite))
}

// WebsocketTransportUnitTestSuite - Before all tests
func (suite *WebsocketTransportUnitTestSuite) SetupSuite() {
	target, err := url.Parse("ws://localhost/socket.io/1/websocket/sid/")
	require.NoError(suite.T(), err)
	suite.target = target
}

// Test suite used to test WebsocketTransport against a live websocket server
type WebsocketTransportIntegrationTestSuite struct {
	suite.Suite
	srv    *echowsserver.EchoWebsocketServer
	srvUrl *url.URL
}

// Run WebsocketTransportIntegrationTestSuite test suite
func TestWebsocketTransportIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(WebsocketTransportIntegrationTestSuite))
}

// WebsocketTransportIntegrationTestSuite - Before all tests
func (suite *WebsocketTransportIntegrationTestSuite) SetupSuite() {
	// Create server on a random port
	srv := echowsserver.NewEchoWebsocketServer(nil, 32, log.New(io.Discard, "", log.Flags()))
	require.NotNil(suite.T(), srv)
	// Start server
	err := srv.Start()
	require.NoError(suite.T(), err)
	// Assign server to suite
	suite.srv = srv
	srvUrl, err := url.Parse(srv.URL())
	require.NoError(suite.T(), err)
	suite.srvUrl = srvUrl
}

// WebsocketTransportIntegrationTestSuite - After all tests
func (suite *WebsocketTransportIntegrationTestSuite) TearDownSuite() {
	// Stop server
	suite.srv.Stop()
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

// Wait for the provided channel to be closed or to receive a value.
func waitFor[T any](t *testing.T, ch chan T, msg string) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout while waiting: "+msg)
	}
	var zero T
	return zero
}

// Wait for the provided done channel to be closed.
func waitDone(t *testing.T, done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout while waiting for the transport to stop")
	}
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test factory with invalid inputs.
func (suite *WebsocketTransportUnitTestSuite) TestFactoryWithInvalidInputs() {
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	listener := wsclient.NewWebsocketClientMock()
	_, err := NewWebsocketTransport(nil, conn, listener, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	_, err = NewWebsocketTransport(suite.target, nil, listener, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	_, err = NewWebsocketTransport(suite.target, conn, nil, nil, nil, nil, nil)
	require.Error(suite.T(), err)
	_, err = NewWebsocketTransport(suite.target, conn, listener,
		NewWebsocketTransportConfigurationOptions().WithCloseTimeoutMs(-1), nil, nil, nil)
	require.Error(suite.T(), err)
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), transport.Id())
	require.Equal(suite.T(), StateIdle, transport.State())
	var iface any = transport
	_, ok := iface.(WebsocketTransportInterface)
	require.True(suite.T(), ok)
}

// # Description
//
// Test the transport calls OnError with a TransportConnectError and becomes Failed when the
// connection cannot be opened. OnConnect and OnDisconnect must not be called.
func (suite *WebsocketTransportUnitTestSuite) TestConnectFailure() {
	dialErr := wsadapters.TransportError{Op: "dial", Err: fmt.Errorf("connection refused")}
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.On("Dial", mock.Anything, suite.target).Return(nil, dialErr)
	listener := wsclient.NewWebsocketClientMock()
	received := make(chan error, 1)
	listener.On("OnError", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		received <- args.Error(1)
	}).Return()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	// Connect does not block
	require.NoError(suite.T(), transport.Connect(context.Background()))
	err = waitFor(suite.T(), received, "OnError")
	var connectErr TransportConnectError
	require.ErrorAs(suite.T(), err, &connectErr)
	require.ErrorIs(suite.T(), err, dialErr)
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateFailed, transport.State())
	listener.AssertNotCalled(suite.T(), "OnConnect", mock.Anything, mock.Anything)
	listener.AssertNotCalled(suite.T(), "OnDisconnect", mock.Anything, mock.Anything, mock.Anything)
	// A transport can only be used once
	require.ErrorIs(suite.T(), transport.Connect(context.Background()), ErrTransportAlreadyUsed)
	// Send fails
	require.ErrorIs(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte("hello")), ErrTransportNotOpen)
	// Disconnect is a no-op
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	require.Equal(suite.T(), StateFailed, transport.State())
}

// Test Connect with a canceled context.
func (suite *WebsocketTransportUnitTestSuite) TestConnectWithCanceledContext() {
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	listener := wsclient.NewWebsocketClientMock()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(suite.T(), transport.Connect(ctx), context.Canceled)
	require.Equal(suite.T(), StateIdle, transport.State())
	conn.AssertNotCalled(suite.T(), "Dial", mock.Anything, mock.Anything)
}

// # Description
//
// Test the transport reports messages and a received close frame in order: OnConnect, OnMessage
// for each message and finally OnDisconnect with the received close code and reason.
func (suite *WebsocketTransportUnitTestSuite) TestReadLoopUntilCloseFrame() {
	resp := &wshandshake.Response{StatusCode: 101, Reason: "Switching Protocols", Header: http.Header{}}
	closeErr := wsadapters.WebsocketCloseError{Code: wsadapters.GoingAway, Reason: "server restart"}
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.
		On("Dial", mock.Anything, suite.target).Return(resp, nil).
		On("Read", mock.Anything).Return(wsadapters.Text, []byte("1::"), nil).Once().
		On("Read", mock.Anything).Return(wsadapters.Binary, []byte{0x01, 0x02}, nil).Once().
		On("Read", mock.Anything).Return(wsadapters.MessageType(-1), nil, closeErr).Once()
	listener := wsclient.NewWebsocketClientMock()
	events := make(chan string, 10)
	listener.
		On("OnConnect", mock.Anything, resp).Run(func(args mock.Arguments) {
		events <- "connect"
	}).Return().
		On("OnMessage", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		events <- fmt.Sprintf("%s:%x", args.Get(1).(wsadapters.MessageType), args.Get(2).([]byte))
	}).Return().
		On("OnDisconnect", mock.Anything, &wsclient.CloseMessageDetails{
			CloseReason:  wsadapters.GoingAway,
			CloseMessage: "server restart",
		}, closeErr).Run(func(args mock.Arguments) {
		events <- "disconnect"
	}).Return()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitDone(suite.T(), transport.Done())
	close(events)
	got := []string{}
	for e := range events {
		got = append(got, e)
	}
	require.Equal(suite.T(), []string{"connect", "text:313a3a", "binary:0102", "disconnect"}, got)
	require.Equal(suite.T(), StateClosed, transport.State())
	listener.AssertNotCalled(suite.T(), "OnError", mock.Anything, mock.Anything)
}

// # Description
//
// Test a read error which is not a close error makes the transport Failed: the connection is
// released and OnError is the only terminal callback called.
func (suite *WebsocketTransportUnitTestSuite) TestReadLoopFailure() {
	readErr := wsadapters.TransportError{Op: "read", Err: fmt.Errorf("connection reset by peer")}
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.
		On("Dial", mock.Anything, suite.target).Return(&wshandshake.Response{StatusCode: 101}, nil).
		On("Read", mock.Anything).Return(wsadapters.MessageType(-1), nil, readErr).Once().
		On("Close", mock.Anything, wsadapters.AbnormalClosure, "").Return(nil)
	listener := wsclient.NewWebsocketClientMock()
	listener.
		On("OnConnect", mock.Anything, mock.Anything).Return().
		On("OnError", mock.Anything, readErr).Return()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateFailed, transport.State())
	listener.AssertCalled(suite.T(), "OnError", mock.Anything, readErr)
	listener.AssertNotCalled(suite.T(), "OnDisconnect", mock.Anything, mock.Anything, mock.Anything)
	conn.AssertCalled(suite.T(), "Close", mock.Anything, wsadapters.AbnormalClosure, "")
}

// Test Disconnect on an idle transport.
func (suite *WebsocketTransportUnitTestSuite) TestDisconnectIdle() {
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	listener := wsclient.NewWebsocketClientMock()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	require.Equal(suite.T(), StateClosed, transport.State())
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	require.ErrorIs(suite.T(), transport.Connect(context.Background()), ErrTransportAlreadyUsed)
	listener.AssertNotCalled(suite.T(), "OnDisconnect", mock.Anything, mock.Anything, mock.Anything)
	listener.AssertNotCalled(suite.T(), "OnError", mock.Anything, mock.Anything)
}

// # Description
//
// Test Disconnect while the connection is being opened: the dial is aborted and OnDisconnect is
// called once, OnError is not called.
func (suite *WebsocketTransportUnitTestSuite) TestDisconnectWhileConnecting() {
	dialing := make(chan struct{})
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.On("Dial", mock.Anything, suite.target).Run(func(args mock.Arguments) {
		close(dialing)
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.Canceled)
	listener := wsclient.NewWebsocketClientMock()
	listener.On("OnDisconnect", mock.Anything, &wsclient.CloseMessageDetails{
		CloseReason:  wsadapters.NormalClosure,
		CloseMessage: localDisconnectReason,
	}, nil).Return().Once()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitFor(suite.T(), dialing, "dial")
	require.Equal(suite.T(), StateConnecting, transport.State())
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	// Idempotent
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateClosed, transport.State())
	listener.AssertExpectations(suite.T())
	listener.AssertNotCalled(suite.T(), "OnError", mock.Anything, mock.Anything)
}

// Test Disconnect cancels a stalled dial right away when a connect timeout is also configured.
func (suite *WebsocketTransportUnitTestSuite) TestDisconnectWhileConnectingWithTimeout() {
	dialing := make(chan struct{})
	dialErr := make(chan error, 1)
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.On("Dial", mock.Anything, suite.target).Run(func(args mock.Arguments) {
		dialCtx := args.Get(0).(context.Context)
		_, hasDeadline := dialCtx.Deadline()
		require.True(suite.T(), hasDeadline)
		close(dialing)
		<-dialCtx.Done()
		dialErr <- dialCtx.Err()
	}).Return(nil, context.Canceled)
	listener := wsclient.NewWebsocketClientMock()
	listener.On("OnDisconnect", mock.Anything, mock.Anything, nil).Return().Once()
	opts := NewWebsocketTransportConfigurationOptions().WithConnectTimeoutMs(60000)
	transport, err := NewWebsocketTransport(suite.target, conn, listener, opts, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitFor(suite.T(), dialing, "dial")
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	err = waitFor(suite.T(), dialErr, "dial abort")
	require.ErrorIs(suite.T(), err, context.Canceled)
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateClosed, transport.State())
	listener.AssertExpectations(suite.T())
}

// Test the connect timeout aborts a stalled dial and results in OnError.
func (suite *WebsocketTransportUnitTestSuite) TestConnectTimeout() {
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.On("Dial", mock.Anything, suite.target).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)
	listener := wsclient.NewWebsocketClientMock()
	received := make(chan error, 1)
	listener.On("OnError", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		received <- args.Error(1)
	}).Return()
	opts := NewWebsocketTransportConfigurationOptions().WithConnectTimeoutMs(50)
	transport, err := NewWebsocketTransport(suite.target, conn, listener, opts, nil, nil, nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	err = waitFor(suite.T(), received, "OnError")
	require.ErrorIs(suite.T(), err, context.DeadlineExceeded)
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateFailed, transport.State())
}

// Test Send forwards messages to the adapter only when open.
func (suite *WebsocketTransportUnitTestSuite) TestSend() {
	release := make(chan struct{})
	writeErr := errors.New("broken pipe")
	conn := wsadapters.NewWebsocketConnectionAdapterInterfaceMock()
	conn.
		On("Dial", mock.Anything, suite.target).Return(&wshandshake.Response{StatusCode: 101}, nil).
		On("Read", mock.Anything).Run(func(args mock.Arguments) {
		<-release
	}).Return(wsadapters.MessageType(-1), nil, wsadapters.WebsocketCloseError{Code: wsadapters.NormalClosure}).
		On("Write", mock.Anything, wsadapters.Text, []byte("2::")).Return(nil).Once().
		On("Write", mock.Anything, wsadapters.Text, []byte("3:::boom")).Return(writeErr).Once()
	listener := wsclient.NewWebsocketClientMock()
	connected := make(chan struct{})
	listener.
		On("OnConnect", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(connected)
	}).Return().
		On("OnDisconnect", mock.Anything, mock.Anything, mock.Anything).Return()
	transport, err := NewWebsocketTransport(suite.target, conn, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	// Not open yet
	require.ErrorIs(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte("2::")), ErrTransportNotOpen)
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitFor(suite.T(), connected, "OnConnect")
	require.NoError(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte("2::")))
	require.ErrorIs(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte("3:::boom")), writeErr)
	close(release)
	waitDone(suite.T(), transport.Done())
	conn.AssertExpectations(suite.T())
}

// Test State String.
func (suite *WebsocketTransportUnitTestSuite) TestStateString() {
	require.Equal(suite.T(), "idle", StateIdle.String())
	require.Equal(suite.T(), "connecting", StateConnecting.String())
	require.Equal(suite.T(), "open", StateOpen.String())
	require.Equal(suite.T(), "closing", StateClosing.String())
	require.Equal(suite.T(), "closed", StateClosed.String())
	require.Equal(suite.T(), "failed", StateFailed.String())
	require.Equal(suite.T(), "unknown(42)", State(42).String())
}

/*************************************************************************************************/
/* INTEGRATION TESTS                                                                             */
/*************************************************************************************************/

// Build a transport which uses a RFC6455 adapter and a listener mock which forwards events to
// the returned channels.
func (suite *WebsocketTransportIntegrationTestSuite) newTransport() (*WebsocketTransport, chan struct{}, chan string, chan *wsclient.CloseMessageDetails) {
	adapter, err := wsadapterrfc6455.NewRFC6455WebsocketConnectionAdapter(nil)
	require.NoError(suite.T(), err)
	connected := make(chan struct{})
	messages := make(chan string, 10)
	disconnected := make(chan *wsclient.CloseMessageDetails, 1)
	listener := wsclient.NewWebsocketClientMock()
	listener.
		On("OnConnect", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		require.Equal(suite.T(), 101, args.Get(1).(*wshandshake.Response).StatusCode)
		close(connected)
	}).Return().
		On("OnMessage", mock.Anything, wsadapters.Text, mock.Anything).Run(func(args mock.Arguments) {
		messages <- string(args.Get(2).([]byte))
	}).Return().
		On("OnDisconnect", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		disconnected <- args.Get(1).(*wsclient.CloseMessageDetails)
	}).Return().Once()
	transport, err := NewWebsocketTransport(suite.srvUrl, adapter, listener, nil, nil, nil, nil)
	require.NoError(suite.T(), err)
	return transport, connected, messages, disconnected
}

// Test echo and local disconnect against the echo server.
func (suite *WebsocketTransportIntegrationTestSuite) TestEchoAndDisconnect() {
	transport, connected, messages, disconnected := suite.newTransport()
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitFor(suite.T(), connected, "OnConnect")
	require.Equal(suite.T(), StateOpen, transport.State())
	// Message longer than the server chunk size is received as a single message
	payload := "5:::{\"name\":\"hello\",\"args\":[\"a rather long argument to force fragmentation\"]}"
	require.NoError(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte(payload)))
	require.Equal(suite.T(), payload, waitFor(suite.T(), messages, "echo"))
	// Server ping is answered transparently
	require.NoError(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte(echowsserver.CommandPing)))
	require.Equal(suite.T(), "pong", waitFor(suite.T(), messages, "pong"))
	// Disconnect
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
	details := waitFor(suite.T(), disconnected, "OnDisconnect")
	require.Equal(suite.T(), wsadapters.NormalClosure, details.CloseReason)
	require.Equal(suite.T(), localDisconnectReason, details.CloseMessage)
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateClosed, transport.State())
	require.NoError(suite.T(), transport.Disconnect(context.Background()))
}

// Test a close frame sent by the server is reported through OnDisconnect.
func (suite *WebsocketTransportIntegrationTestSuite) TestServerClose() {
	transport, connected, _, disconnected := suite.newTransport()
	require.NoError(suite.T(), transport.Connect(context.Background()))
	waitFor(suite.T(), connected, "OnConnect")
	require.NoError(suite.T(), transport.Send(context.Background(), wsadapters.Text, []byte(echowsserver.CommandClose+"bye")))
	details := waitFor(suite.T(), disconnected, "OnDisconnect")
	require.Equal(suite.T(), wsadapters.NormalClosure, details.CloseReason)
	require.Equal(suite.T(), "bye", details.CloseMessage)
	waitDone(suite.T(), transport.Done())
	require.Equal(suite.T(), StateClosed, transport.State())
}
