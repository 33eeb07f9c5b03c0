package sioclient

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Defines configuration options for a Socket.IO session.
//
// Use the factory function to get a new instance of the struct with nice defaults and then modify
// settings using With*** methods.
type SessionConfigurationOptions struct {
	// If true, the session will reopen its transport after a transport failure as long as at
	// least one client has not been disconnected.
	//
	// Defaults to true.
	AutoReconnect bool
	// Delay before the first reconnect attempt. Consecutive failures multiply the delay by
	// ReconnectMultiplier. A successful attachment resets the delay.
	//
	// Defaults to 1s. Must be greater than 0.
	ReconnectBaseDelay time.Duration `validate:"gt=0"`
	// Maximum delay between two reconnect attempts.
	//
	// Defaults to 60s. Must be greater or equal to ReconnectBaseDelay.
	ReconnectMaxDelay time.Duration `validate:"gtefield=ReconnectBaseDelay"`
	// Factor applied to the reconnect delay after each failure.
	//
	// Defaults to 2. Must be greater or equal to 1.
	ReconnectMultiplier float64 `validate:"gte=1"`
	// Path of the handshake endpoint used by the default bootstrapper.
	//
	// Defaults to /socket.io/1/.
	HandshakePath string `validate:"required,startswith=/"`
}

// # Description
//
// Set opts.AutoReconnect and return the modified object. The method does not validate inputs.
func (opts *SessionConfigurationOptions) WithAutoReconnect(value bool) *SessionConfigurationOptions {
	opts.AutoReconnect = value
	return opts
}

// # Description
//
// Set opts.ReconnectBaseDelay and return the modified object. The method does not validate inputs.
func (opts *SessionConfigurationOptions) WithReconnectBaseDelay(value time.Duration) *SessionConfigurationOptions {
	opts.ReconnectBaseDelay = value
	return opts
}

// # Description
//
// Set opts.ReconnectMaxDelay and return the modified object. The method does not validate inputs.
func (opts *SessionConfigurationOptions) WithReconnectMaxDelay(value time.Duration) *SessionConfigurationOptions {
	opts.ReconnectMaxDelay = value
	return opts
}

// # Description
//
// Set opts.ReconnectMultiplier and return the modified object. The method does not validate inputs.
func (opts *SessionConfigurationOptions) WithReconnectMultiplier(value float64) *SessionConfigurationOptions {
	opts.ReconnectMultiplier = value
	return opts
}

// # Description
//
// Set opts.HandshakePath and return the modified object. The method does not validate inputs.
func (opts *SessionConfigurationOptions) WithHandshakePath(value string) *SessionConfigurationOptions {
	opts.HandshakePath = value
	return opts
}

// # Description
//
// Factory which creates a new SessionConfigurationOptions object with nice defaults.
//
// # Default settings
//
//   - AutoReconnect = true
//   - ReconnectBaseDelay = 1s
//   - ReconnectMaxDelay = 60s
//   - ReconnectMultiplier = 2 (1s, 2s, 4s, ... 60s)
//   - HandshakePath = /socket.io/1/
func NewSessionConfigurationOptions() *SessionConfigurationOptions {
	return &SessionConfigurationOptions{
		AutoReconnect:       true,
		ReconnectBaseDelay:  time.Second,
		ReconnectMaxDelay:   time.Minute,
		ReconnectMultiplier: 2,
		HandshakePath:       DefaultHandshakePath,
	}
}

// # Description
//
// Helper function which validates SessionConfigurationOptions.
//
// # Returns
//
// InvalidValidationError for bad values passed in and nil or ValidationErrors as error otherwise.
func Validate(opts *SessionConfigurationOptions) error {
	return validator.New().Struct(opts)
}
