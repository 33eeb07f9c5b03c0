package configuration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Names of the command line flags
const (
	FlagConfig          = "config"
	FlagURL             = "url"
	FlagEndpoint        = "endpoint"
	FlagHandshakePath   = "handshake-path"
	FlagEmit            = "emit"
	FlagArgs            = "args"
	FlagHeader          = "header"
	FlagNoReconnect     = "no-reconnect"
	FlagInsecure        = "insecure"
	FlagTracingEnabled  = "tracing"
	FlagTracingEndpoint = "tracing-endpoint"
)

// Names of the environment variables
const (
	EnvServerURL       = "SIOCLI_SERVER_URL"
	EnvTracingEnabled  = "SIOCLI_TRACING_ENABLED"
	EnvTracingEndpoint = "SIOCLI_TRACING_ENDPOINT"
)

// siocli configuration.
type Configuration struct {
	// Socket.IO server base URL (http or https)
	ServerURL string `yaml:"server_url" validate:"required,url"`
	// Endpoint to connect to. Empty for the default endpoint.
	Endpoint string `yaml:"endpoint" validate:"omitempty,startswith=/"`
	// Path of the handshake endpoint
	HandshakePath string `yaml:"handshake_path" validate:"required,startswith=/"`
	// Additional headers sent with the handshake request and the websocket upgrade request
	Headers map[string]string `yaml:"headers"`
	// Name of an event to emit once connected. Nothing is emitted if empty.
	Emit string `yaml:"emit"`
	// JSON array of arguments of the emitted event
	Args string `yaml:"args"`
	// Reconnect after transport failures
	AutoReconnect bool `yaml:"auto_reconnect"`
	// Delay before the first reconnect attempt
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" validate:"gt=0"`
	// Max. delay between two reconnect attempts
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay" validate:"gtefield=ReconnectBaseDelay"`
	// Skip server certificate verification
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
	// Export traces
	TracingEnabled bool `yaml:"tracing_enabled"`
	// OTLP HTTP endpoint (host:port) of the tracing backend
	TracingEndpoint string `yaml:"tracing_endpoint" validate:"required_if=TracingEnabled true"`
}

// Return the default configuration.
func Default() Configuration {
	return Configuration{
		ServerURL:          "http://localhost:8081",
		HandshakePath:      "/socket.io/1/",
		Headers:            map[string]string{},
		Args:               "[]",
		AutoReconnect:      true,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		TracingEndpoint:    "localhost:4318",
	}
}

// # Description
//
// Load the configuration. Defaults are overridden by the environment and then by the YAML file
// located at path. The file is skipped if path is empty.
//
// # Returns
//
// The loaded configuration or an error if the file cannot be read or decoded or if an environment
// variable has an invalid value. The configuration is not validated.
func Load(path string) (Configuration, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read configuration file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to decode configuration file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func (cfg *Configuration) applyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvServerURL); ok {
		cfg.ServerURL = value
	}
	if value, ok := lookup(EnvTracingEnabled); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", EnvTracingEnabled, err)
		}
		cfg.TracingEnabled = enabled
	}
	if value, ok := lookup(EnvTracingEndpoint); ok {
		cfg.TracingEndpoint = value
	}
	return nil
}

// Register the command line flags used by FromFlags.
func RegisterFlags(flags *pflag.FlagSet) {
	defaults := Default()
	flags.String(FlagConfig, "", "path to a YAML configuration file")
	flags.String(FlagURL, defaults.ServerURL, "Socket.IO server base URL")
	flags.String(FlagEndpoint, defaults.Endpoint, "endpoint to connect to (ex: /chat)")
	flags.String(FlagHandshakePath, defaults.HandshakePath, "path of the handshake endpoint")
	flags.String(FlagEmit, defaults.Emit, "name of an event to emit once connected")
	flags.String(FlagArgs, defaults.Args, "JSON array of arguments of the emitted event")
	flags.StringToString(FlagHeader, nil, "additional header (name=value), can be repeated")
	flags.Bool(FlagNoReconnect, false, "do not reconnect after transport failures")
	flags.Bool(FlagInsecure, defaults.InsecureSkipVerify, "skip server certificate verification")
	flags.Bool(FlagTracingEnabled, defaults.TracingEnabled, "export traces to an OTLP HTTP backend")
	flags.String(FlagTracingEndpoint, defaults.TracingEndpoint, "OTLP HTTP endpoint (host:port)")
}

// # Description
//
// Load the configuration file designated by the config flag and override its values with the
// flags explicitly set on the command line.
func FromFlags(flags *pflag.FlagSet) (Configuration, error) {
	path, err := flags.GetString(FlagConfig)
	if err != nil {
		return Configuration{}, err
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	strs := map[string]*string{
		FlagURL:             &cfg.ServerURL,
		FlagEndpoint:        &cfg.Endpoint,
		FlagHandshakePath:   &cfg.HandshakePath,
		FlagEmit:            &cfg.Emit,
		FlagArgs:            &cfg.Args,
		FlagTracingEndpoint: &cfg.TracingEndpoint,
	}
	for name, target := range strs {
		if flags.Changed(name) {
			if *target, err = flags.GetString(name); err != nil {
				return cfg, err
			}
		}
	}
	bools := map[string]*bool{
		FlagInsecure:       &cfg.InsecureSkipVerify,
		FlagTracingEnabled: &cfg.TracingEnabled,
	}
	for name, target := range bools {
		if flags.Changed(name) {
			if *target, err = flags.GetBool(name); err != nil {
				return cfg, err
			}
		}
	}
	if flags.Changed(FlagNoReconnect) {
		noReconnect, err := flags.GetBool(FlagNoReconnect)
		if err != nil {
			return cfg, err
		}
		cfg.AutoReconnect = !noReconnect
	}
	if flags.Changed(FlagHeader) {
		headers, err := flags.GetStringToString(FlagHeader)
		if err != nil {
			return cfg, err
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for name, value := range headers {
			cfg.Headers[name] = value
		}
	}
	return cfg, nil
}

// Validate the configuration.
func (cfg Configuration) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if _, err := cfg.EmitArgs(); err != nil {
		return err
	}
	return nil
}

// Decode the arguments of the emitted event.
func (cfg Configuration) EmitArgs() ([]any, error) {
	if cfg.Args == "" {
		return []any{}, nil
	}
	args := []any{}
	if err := json.Unmarshal([]byte(cfg.Args), &args); err != nil {
		return nil, fmt.Errorf("args must be a JSON array: %w", err)
	}
	return args, nil
}
