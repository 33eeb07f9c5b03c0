package echowsserver

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"nhooyr.io/websocket"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

// Test suite for EchoWebsocketServer
type EchoWebsocketServerMethodsTestSuite struct {
	suite.Suite
}

// Run EchoWebsocketServerMethodsTestSuite test suite
func TestEchoWebsocketServerMethodsTestSuite(t *testing.T) {
	suite.Run(t, new(EchoWebsocketServerMethodsTestSuite))
}

/*************************************************************************************************/
/* ECHOWEBSOCKETSERVER - TESTS                                                                   */
/*************************************************************************************************/

// # Description
//
// Test server Start/Stop methods.
//
// Test will succeed if
//   - Server starts without error
//   - A websocket client connect to the server & perform a ping/pong
//   - Server stops without error
//   - Client ping fails because connection is closed.
func (suite *EchoWebsocketServerMethodsTestSuite) TestServerStartAndStop() {
	srv := NewEchoWebsocketServer(nil, 0, nil)
	require.NotNil(suite.T(), srv)
	require.Empty(suite.T(), srv.URL())
	err := srv.Start()
	require.NoError(suite.T(), err)
	conn, res, err := websocket.Dial(context.Background(), srv.URL(), nil)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), res)
	// Automatically process incoming control frames & ping
	conn.CloseRead(context.Background())
	err = conn.Ping(context.Background())
	require.NoError(suite.T(), err)
	err = srv.Stop()
	require.NoError(suite.T(), err)
	// Pause before testing connection again
	time.Sleep(500 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = conn.Ping(ctx)
	require.Error(suite.T(), err)
}

// Test server Start method returns an error on second Start method call.
func (suite *EchoWebsocketServerMethodsTestSuite) TestServerStartErrorAlreadyStarted() {
	srv := NewEchoWebsocketServer(nil, 0, nil)
	require.NoError(suite.T(), srv.Start())
	require.Error(suite.T(), srv.Start())
	require.NoError(suite.T(), srv.Stop())
}

// Test server Stop method returns an error when server has not started.
func (suite *EchoWebsocketServerMethodsTestSuite) TestServerStopErrorSrvNotStarted() {
	srv := NewEchoWebsocketServer(nil, 0, nil)
	require.Error(suite.T(), srv.Stop())
}

// # Description
//
// Test EchoWebsocketServer echo feature. Test will succeed if a websocket client can open a
// connection to the server, and send and receive multiple echo messages, including messages
// larger than the chunk size which are echoed as several fragments.
func (suite *EchoWebsocketServerMethodsTestSuite) TestEchoFeature() {
	srv := NewEchoWebsocketServer(nil, 16, nil)
	require.NoError(suite.T(), srv.Start())
	defer srv.Stop()
	conn, _, err := websocket.Dial(context.Background(), srv.URL(), nil)
	require.NoError(suite.T(), err)
	for _, expected := range [][]byte{[]byte("hello world"), bytes.Repeat([]byte("0123456789"), 10), {}} {
		err = conn.Write(context.Background(), websocket.MessageBinary, expected)
		require.NoError(suite.T(), err)
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		msgType, msg, err := conn.Read(timeoutCtx)
		cancel()
		require.NoError(suite.T(), err)
		require.Equal(suite.T(), websocket.MessageBinary, msgType)
		require.Equal(suite.T(), len(expected), len(msg))
		require.Equal(suite.T(), string(expected), string(msg))
	}
	err = conn.Close(websocket.StatusNormalClosure, "Going away")
	require.NoError(suite.T(), err)
}

// Test a message larger than the default nhooyr read limit is accepted and echoed back.
func (suite *EchoWebsocketServerMethodsTestSuite) TestEchoLargeMessage() {
	srv := NewEchoWebsocketServer(nil, 0, nil)
	require.NoError(suite.T(), srv.Start())
	defer srv.Stop()
	conn, _, err := websocket.Dial(context.Background(), srv.URL(), nil)
	require.NoError(suite.T(), err)
	conn.SetReadLimit(ReadLimit)
	expected := bytes.Repeat([]byte{0xAB}, 70000)
	require.NoError(suite.T(), conn.Write(context.Background(), websocket.MessageBinary, expected))
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msgType, msg, err := conn.Read(timeoutCtx)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), websocket.MessageBinary, msgType)
	require.Equal(suite.T(), expected, msg)
	require.NoError(suite.T(), conn.Close(websocket.StatusNormalClosure, ""))
}

// Test the close command makes the server close the connection with code 1000 and the reason.
func (suite *EchoWebsocketServerMethodsTestSuite) TestCloseCommand() {
	srv := NewEchoWebsocketServer(nil, 0, nil)
	require.NoError(suite.T(), srv.Start())
	defer srv.Stop()
	conn, _, err := websocket.Dial(context.Background(), srv.URL(), nil)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), conn.Write(context.Background(), websocket.MessageText, []byte(CommandClose+"bye")))
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err = conn.Read(timeoutCtx)
	require.Error(suite.T(), err)
	require.Equal(suite.T(), websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
