package wsadapters

import (
	"context"
	"net/url"

	"github.com/gbdevw/gowsio/wshandshake"
	"github.com/stretchr/testify/mock"
)

// Mock for WebsocketConnectionAdapterInterface
type WebsocketConnectionAdapterInterfaceMock struct {
	mock.Mock
}

// Factory
func NewWebsocketConnectionAdapterInterfaceMock() *WebsocketConnectionAdapterInterfaceMock {
	return &WebsocketConnectionAdapterInterfaceMock{
		Mock: mock.Mock{},
	}
}

// Mocked Dial. First return value can be nil or a *wshandshake.Response.
func (mock *WebsocketConnectionAdapterInterfaceMock) Dial(ctx context.Context, target *url.URL) (*wshandshake.Response, error) {
	args := mock.Called(ctx, target)
	resp, _ := args.Get(0).(*wshandshake.Response)
	return resp, args.Error(1)
}

// Mocked Close
func (mock *WebsocketConnectionAdapterInterfaceMock) Close(ctx context.Context, code StatusCode, reason string) error {
	args := mock.Called(ctx, code, reason)
	return args.Error(0)
}

// Mocked Ping
func (mock *WebsocketConnectionAdapterInterfaceMock) Ping(ctx context.Context) error {
	args := mock.Called(ctx)
	return args.Error(0)
}

// Mocked Read. Second return value can be nil or a []byte.
func (mock *WebsocketConnectionAdapterInterfaceMock) Read(ctx context.Context) (MessageType, []byte, error) {
	args := mock.Called(ctx)
	msg, _ := args.Get(1).([]byte)
	return args.Get(0).(MessageType), msg, args.Error(2)
}

// Mocked Write
func (mock *WebsocketConnectionAdapterInterfaceMock) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	args := mock.Called(ctx, msgType, msg)
	return args.Error(0)
}

// Mocked GetUnderlyingWebsocketConnection
func (mock *WebsocketConnectionAdapterInterfaceMock) GetUnderlyingWebsocketConnection() any {
	args := mock.Called()
	return args.Get(0)
}
