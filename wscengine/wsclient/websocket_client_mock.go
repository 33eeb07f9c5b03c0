package wsclient

import (
	"context"

	"github.com/gbdevw/gowsio/wscengine/wsadapters"
	"github.com/gbdevw/gowsio/wshandshake"
	"github.com/stretchr/testify/mock"
)

/*****************************************************************************/
/* WEBSOCKET CLIENT MOCK                                                     */
/*****************************************************************************/

// Mock for WebsocketClientInterface. Each callback has its own mock that is used when a callback is called.
type WebsocketClientMock struct {
	mock.Mock
}

// Factory
func NewWebsocketClientMock() *WebsocketClientMock {
	return &WebsocketClientMock{
		Mock: mock.Mock{},
	}
}

// Mocked OnConnect method
func (mock *WebsocketClientMock) OnConnect(ctx context.Context, resp *wshandshake.Response) {
	mock.Called(ctx, resp)
}

// Mocked OnMessage method
func (mock *WebsocketClientMock) OnMessage(ctx context.Context, msgType wsadapters.MessageType, msg []byte) {
	mock.Called(ctx, msgType, msg)
}

// Mocked OnDisconnect method
func (mock *WebsocketClientMock) OnDisconnect(ctx context.Context, closeMessage *CloseMessageDetails, err error) {
	mock.Called(ctx, closeMessage, err)
}

// Mocked OnError method
func (mock *WebsocketClientMock) OnError(ctx context.Context, err error) {
	mock.Called(ctx, err)
}
