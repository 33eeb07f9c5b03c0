package wscengine

import (
	"github.com/go-playground/validator/v10"
)

// Defines configuration options for a websocket transport.
//
// Use the factory function to get a new instance of the struct with nice defaults and then modify
// settings using With*** methods.
type WebsocketTransportConfigurationOptions struct {
	// Delay to open the websocket connection: TCP connect, TLS and opening handshake
	// (milliseconds). Applied on top of the adapter own dial timeout.
	//
	// Defaults to 0 (disabled). Must be at least 0.
	ConnectTimeoutMs int64 `validate:"gte=0"`
	// Delay to send the close frame when the transport is disconnected (milliseconds).
	//
	// Defaults to 5000 (5 seconds). 0 disables the timeout.
	CloseTimeoutMs int64 `validate:"gte=0"`
}

// # Description
//
// Set opts.ConnectTimeoutMs and return the modified object. The method does not validate inputs.
//
// # ConnectTimeoutMs
//
// This option defines the maximum delay (milliseconds) to open the websocket connection. A value
// of 0 disables the timeout. When the timeout expires, the listener OnError callback is called
// with a TransportConnectError.
//
// Must be greater or equal to 0. Defaults to 0.
//
// # Return
//
// The modified options.
func (opts *WebsocketTransportConfigurationOptions) WithConnectTimeoutMs(
	value int64) *WebsocketTransportConfigurationOptions {
	// Set and return
	opts.ConnectTimeoutMs = value
	return opts
}

// # Description
//
// Set opts.CloseTimeoutMs and return the modified object. The method does not validate inputs.
//
// # CloseTimeoutMs
//
// This option defines the maximum delay (milliseconds) to send the close frame when the transport
// is disconnected. The underlying connection is closed in all cases. A value of 0 disables the
// timeout.
//
// Must be greater or equal to 0. Defaults to 5 seconds (= 5000).
//
// # Return
//
// The modified options.
func (opts *WebsocketTransportConfigurationOptions) WithCloseTimeoutMs(
	value int64) *WebsocketTransportConfigurationOptions {
	// Set and return
	opts.CloseTimeoutMs = value
	return opts
}

// # Description
//
// Factory which creates a new WebsocketTransportConfigurationOptions object with nice defaults.
// Settings can then be modified by the user by using With*** methods.
//
// # Default settings
//
//   - ConnectTimeoutMs = 0 (disabled).
//   - CloseTimeoutMs = 5000 (5 seconds).
func NewWebsocketTransportConfigurationOptions() *WebsocketTransportConfigurationOptions {
	return &WebsocketTransportConfigurationOptions{
		ConnectTimeoutMs: 0,
		CloseTimeoutMs:   5000,
	}
}

// # Description
//
// Helper function which validates WebsocketTransportConfigurationOptions. Options are valid if:
//   - opts is not nil
//   - opts.ConnectTimeoutMs is greater or equal to 0
//   - opts.CloseTimeoutMs is greater or equal to 0
//
// # Returns
//
// InvalidValidationError for bad values passed in and nil or ValidationErrors as error otherwise.
// You will need to assert the error if it's not nil eg. err.(validator.ValidationErrors) to access
// the array of errors.
func Validate(opts *WebsocketTransportConfigurationOptions) error {
	// Validate
	return validator.New().Struct(opts)
}
