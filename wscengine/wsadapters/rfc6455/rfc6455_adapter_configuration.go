package wsadapterrfc6455

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/gbdevw/gowsio/wsframe"
	"github.com/gbdevw/gowsio/wshandshake"
	"github.com/go-playground/validator/v10"
)

// Certificate trust collaborator. When set in the adapter options, it replaces the default
// certificate chain verification for wss connections: the connection is established only if the
// policy returns true for the server name and the certificate chain presented by the server.
type TrustPolicy func(serverName string, chain []*x509.Certificate) bool

// Defines configuration options for the RFC6455 adapter.
//
// Use the factory function to get a new instance of the struct with nice defaults and then modify
// settings using With*** methods.
type AdapterConfigurationOptions struct {
	// Maximum size of a reassembled message (bytes). Bigger messages are a fatal error for the
	// connection.
	//
	// Defaults to 32 MiB. 0 disables the limit.
	MaxMessageSize int64 `validate:"gte=0"`
	// Maximum delay to open the socket, complete TLS and the opening handshake.
	//
	// Defaults to 0 (no timeout, the Dial context deadline still applies).
	DialTimeout time.Duration `validate:"gte=0"`
	// Extra headers sent with the opening handshake request, in order.
	Header []wshandshake.HeaderField
	// Optional certificate trust policy. Nil means the system verification is used.
	TrustPolicy TrustPolicy
	// Optional base TLS configuration for wss connections. It is cloned before use.
	TLSConfig *tls.Config `validate:"-"`
}

// Set opts.MaxMessageSize and return the modified object. The method does not validate inputs.
func (opts *AdapterConfigurationOptions) WithMaxMessageSize(value int64) *AdapterConfigurationOptions {
	opts.MaxMessageSize = value
	return opts
}

// Set opts.DialTimeout and return the modified object. The method does not validate inputs.
func (opts *AdapterConfigurationOptions) WithDialTimeout(value time.Duration) *AdapterConfigurationOptions {
	opts.DialTimeout = value
	return opts
}

// # Description
//
// Append an extra header to the opening handshake request and return the modified object. The
// same header can be added several times.
func (opts *AdapterConfigurationOptions) WithHeader(name string, value string) *AdapterConfigurationOptions {
	opts.Header = append(opts.Header, wshandshake.HeaderField{Name: name, Value: value})
	return opts
}

// Set opts.TrustPolicy and return the modified object.
func (opts *AdapterConfigurationOptions) WithTrustPolicy(value TrustPolicy) *AdapterConfigurationOptions {
	opts.TrustPolicy = value
	return opts
}

// Set opts.TLSConfig and return the modified object.
func (opts *AdapterConfigurationOptions) WithTLSConfig(value *tls.Config) *AdapterConfigurationOptions {
	opts.TLSConfig = value
	return opts
}

// # Description
//
// Factory which creates a new AdapterConfigurationOptions object with nice defaults.
//
// # Default settings
//
//   - MaxMessageSize = 32 MiB
//   - DialTimeout = 0 (disabled)
//   - No extra header, no trust policy, no base TLS configuration.
func NewAdapterConfigurationOptions() *AdapterConfigurationOptions {
	return &AdapterConfigurationOptions{
		MaxMessageSize: wsframe.DefaultMaxMessageSize,
		DialTimeout:    0,
		Header:         nil,
		TrustPolicy:    nil,
		TLSConfig:      nil,
	}
}

// # Description
//
// Helper function which validates AdapterConfigurationOptions. Options are valid if:
//   - opts is not nil
//   - opts.MaxMessageSize is greater or equal to 0
//   - opts.DialTimeout is greater or equal to 0
//
// # Returns
//
// InvalidValidationError for bad values passed in and nil or ValidationErrors as error otherwise.
func Validate(opts *AdapterConfigurationOptions) error {
	return validator.New().Struct(opts)
}
