// This package contains the implementation of a simple echo websocket server used to exercise the
// websocket transport: it echoes every message back as a fragmented message and understands a few
// commands which make it ping the client or close the connection.
package echowsserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Alias type used as key in context for the session ID
type contextKey string

const (
	sessionId contextKey = "sessionId"
)

const (
	// Text message which makes the server send a ping to the client. The server answers with
	// "pong" once the client pong is received.
	CommandPing = "!ping"
	// Text message prefix which makes the server close the connection with code 1000. The rest
	// of the message is used as close reason.
	CommandClose = "!close "
	// Default size of the fragments used to echo messages
	DefaultChunkSize = 4096
	// Maximum size of a message read from a client
	ReadLimit = 32 * 1024 * 1024
)

// Structure for the websocket server
type EchoWebsocketServer struct {
	// Underlying http.Server
	httpServer *http.Server
	// Listener bound when server starts
	listener net.Listener
	// Size of the fragments used to echo messages
	chunkSize int
	// Indicates that server has started
	started bool
	// Context bound to websocket server lifetime
	serverCtx context.Context
	// Cancel function used to stop server
	cancelServerCtx context.CancelFunc
	// Internal mutex used to coordinate start/stop
	startMu *sync.Mutex
	// Logger
	logger *log.Logger
}

// # Description
//
// Factory which creates a new, non-started EchoWebsocketServer.
//
// # Inputs
//
//   - httpServer: The underlying HTTP Server to use. The provided HTTP Server handler will be
//     overriden with this server handler. If nil is provided, a default HTTP server listening
//     on a random localhost port will be used.
//   - chunkSize: Size of the fragments used to echo messages. Defaults to 4096 if <= 0.
//   - logger: Logger to use. If nil, default logger will be used
//
// # Returns
//
// A new, non-started EchoWebsocketServer.
func NewEchoWebsocketServer(httpServer *http.Server, chunkSize int, logger *log.Logger) *EchoWebsocketServer {
	if httpServer == nil {
		httpServer = &http.Server{Addr: "127.0.0.1:0", BaseContext: func(l net.Listener) context.Context { return context.Background() }}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.Default()
	}
	wssrv := &EchoWebsocketServer{
		httpServer: httpServer,
		chunkSize:  chunkSize,
		started:    false,
		startMu:    &sync.Mutex{},
		logger:     logger,
	}
	httpServer.Handler = wssrv
	return wssrv
}

// # Description
//
// Start the websocket server that will accept incoming websocket connections. The listener is
// bound before Start returns so URL can be used right away.
func (srv *EchoWebsocketServer) Start() error {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.started {
		return fmt.Errorf("server already started")
	}
	listener, err := net.Listen("tcp", srv.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.httpServer.Addr, err)
	}
	srv.listener = listener
	srv.serverCtx, srv.cancelServerCtx = context.WithCancel(context.Background())
	srv.started = true
	go srv.httpServer.Serve(listener)
	return nil
}

// # Description
//
// Stop the websocket server and close all client connections.
//
// # Returns
//
// Nil in case of success, an error otherwise.
func (srv *EchoWebsocketServer) Stop() error {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if !srv.started {
		return fmt.Errorf("server not started")
	}
	srv.cancelServerCtx()
	srv.started = false
	return srv.httpServer.Close()
}

// Websocket URL of the started server (ws://host:port/). Empty if the server has not started.
func (srv *EchoWebsocketServer) URL() string {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.listener == nil {
		return ""
	}
	return "ws://" + srv.listener.Addr().String() + "/"
}

// # Description
//
// Server handler which accepts incoming websocket connections.
func (srv *EchoWebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.logger.Println("new client connection")
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		srv.logger.Println("an error occured while accepting client connection", err)
		return
	}
	c.SetReadLimit(ReadLimit)
	ctx := context.WithValue(srv.serverCtx, sessionId, uuid.New())
	go srv.closeWatchdog(ctx, c)
	go srv.runClientSession(ctx, c)
}

// Manages the client session and handle echo feature until the connection is closed.
func (srv *EchoWebsocketServer) runClientSession(ctx context.Context, conn *websocket.Conn) {
	for {
		mt, message, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				srv.logger.Printf("%s - connection closed: %s\n", ctx.Value(sessionId), err.Error())
				return
			}
			srv.logger.Printf("%s - read error: %s\n", ctx.Value(sessionId), err.Error())
			return
		}
		srv.logger.Printf("%s - type: %v - read %d bytes\n", ctx.Value(sessionId), mt, len(message))
		if mt == websocket.MessageText {
			text := string(message)
			switch {
			case text == CommandPing:
				go srv.pingClient(ctx, conn)
				continue
			case strings.HasPrefix(text, CommandClose):
				conn.Close(websocket.StatusNormalClosure, strings.TrimPrefix(text, CommandClose))
				return
			}
		}
		if err := srv.echo(ctx, conn, mt, message); err != nil {
			srv.logger.Printf("%s - write error: %s\n", ctx.Value(sessionId), err.Error())
			return
		}
	}
}

// Echo a message back as a sequence of fragments of at most chunkSize bytes.
func (srv *EchoWebsocketServer) echo(ctx context.Context, conn *websocket.Conn, mt websocket.MessageType, message []byte) error {
	w, err := conn.Writer(ctx, mt)
	if err != nil {
		return err
	}
	for len(message) > srv.chunkSize {
		if _, err := w.Write(message[:srv.chunkSize]); err != nil {
			return err
		}
		message = message[srv.chunkSize:]
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	return w.Close()
}

// Ping the client and report the outcome with a text message.
func (srv *EchoWebsocketServer) pingClient(ctx context.Context, conn *websocket.Conn) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		srv.logger.Printf("%s - ping failed: %s\n", ctx.Value(sessionId), err.Error())
		return
	}
	conn.Write(ctx, websocket.MessageText, []byte("pong"))
}

// This function waits for a cancelation signal on provided context Done channel
// and close the provided websocket connection
func (srv *EchoWebsocketServer) closeWatchdog(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	conn.Close(websocket.StatusGoingAway, "server stopped")
}
