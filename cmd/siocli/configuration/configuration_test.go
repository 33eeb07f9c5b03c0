package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for siocli configuration unit tests
type ConfigurationUnitTestSuite struct {
	suite.Suite
}

// Run ConfigurationUnitTestSuite test suite
func TestConfigurationUnitTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigurationUnitTestSuite))
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

const testConfigurationFile = `
server_url: https://example.com:8443
endpoint: /chat
headers:
  Authorization: Bearer abc
emit: hello
args: '["world", 1]'
auto_reconnect: false
reconnect_base_delay: 500ms
reconnect_max_delay: 10s
`

// Write the configuration file in a temp. directory and return its path.
func (suite *ConfigurationUnitTestSuite) writeFile(content string) string {
	path := filepath.Join(suite.T().TempDir(), "siocli.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Register the flags and parse the provided arguments.
func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("siocli", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test defaults are valid.
func (suite *ConfigurationUnitTestSuite) TestDefaults() {
	cfg, err := Load("")
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), cfg.Validate())
	require.Equal(suite.T(), "/socket.io/1/", cfg.HandshakePath)
	require.True(suite.T(), cfg.AutoReconnect)
	args, err := cfg.EmitArgs()
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), args)
}

// Test values are loaded from a YAML file.
func (suite *ConfigurationUnitTestSuite) TestLoadFile() {
	cfg, err := Load(suite.writeFile(testConfigurationFile))
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), cfg.Validate())
	require.Equal(suite.T(), "https://example.com:8443", cfg.ServerURL)
	require.Equal(suite.T(), "/chat", cfg.Endpoint)
	require.Equal(suite.T(), "Bearer abc", cfg.Headers["Authorization"])
	require.False(suite.T(), cfg.AutoReconnect)
	require.Equal(suite.T(), 500*time.Millisecond, cfg.ReconnectBaseDelay)
	require.Equal(suite.T(), 10*time.Second, cfg.ReconnectMaxDelay)
	// Unchanged default
	require.Equal(suite.T(), "/socket.io/1/", cfg.HandshakePath)
	args, err := cfg.EmitArgs()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), []any{"world", float64(1)}, args)
	// Empty file
	cfg, err = Load(suite.writeFile(""))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), Default(), cfg)
}

// Test invalid files are rejected.
func (suite *ConfigurationUnitTestSuite) TestLoadInvalidFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	require.Error(suite.T(), err)
	_, err = Load(suite.writeFile("unknown_field: 1\n"))
	require.Error(suite.T(), err)
	_, err = Load(suite.writeFile("reconnect_base_delay: soon\n"))
	require.Error(suite.T(), err)
}

// Test the environment overrides defaults and is overridden by the file.
func (suite *ConfigurationUnitTestSuite) TestEnvironment() {
	suite.T().Setenv(EnvServerURL, "http://env:1234")
	suite.T().Setenv(EnvTracingEnabled, "true")
	cfg, err := Load("")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "http://env:1234", cfg.ServerURL)
	require.True(suite.T(), cfg.TracingEnabled)
	cfg, err = Load(suite.writeFile(testConfigurationFile))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "https://example.com:8443", cfg.ServerURL)
	suite.T().Setenv(EnvTracingEnabled, "maybe")
	_, err = Load("")
	require.Error(suite.T(), err)
}

// Test flags override the file.
func (suite *ConfigurationUnitTestSuite) TestFlagsOverrideFile() {
	path := suite.writeFile(testConfigurationFile)
	flags := parseFlags(suite.T(),
		"--config", path,
		"--endpoint", "/news",
		"--header", "X-Trace=1",
		"--tracing",
	)
	cfg, err := FromFlags(flags)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), cfg.Validate())
	// Overridden
	require.Equal(suite.T(), "/news", cfg.Endpoint)
	require.True(suite.T(), cfg.TracingEnabled)
	require.Equal(suite.T(), "1", cfg.Headers["X-Trace"])
	// From the file: flag defaults do not override file values
	require.Equal(suite.T(), "https://example.com:8443", cfg.ServerURL)
	require.Equal(suite.T(), "hello", cfg.Emit)
	require.Equal(suite.T(), "Bearer abc", cfg.Headers["Authorization"])
	require.False(suite.T(), cfg.AutoReconnect)
}

// Test flags override defaults when there is no file.
func (suite *ConfigurationUnitTestSuite) TestFlagsWithoutFile() {
	flags := parseFlags(suite.T(),
		"--url", "http://127.0.0.1:9000",
		"--emit", "ping",
		"--args", `[{"a":1}]`,
		"--no-reconnect",
	)
	cfg, err := FromFlags(flags)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), cfg.Validate())
	require.Equal(suite.T(), "http://127.0.0.1:9000", cfg.ServerURL)
	require.Equal(suite.T(), "ping", cfg.Emit)
	require.False(suite.T(), cfg.AutoReconnect)
	args, err := cfg.EmitArgs()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), []any{map[string]any{"a": float64(1)}}, args)
}

// Test validation.
func (suite *ConfigurationUnitTestSuite) TestValidate() {
	cfg := Default()
	cfg.ServerURL = ""
	require.Error(suite.T(), cfg.Validate())
	cfg = Default()
	cfg.Endpoint = "chat"
	require.Error(suite.T(), cfg.Validate())
	cfg = Default()
	cfg.HandshakePath = "socket.io/1/"
	require.Error(suite.T(), cfg.Validate())
	cfg = Default()
	cfg.ReconnectMaxDelay = cfg.ReconnectBaseDelay / 2
	require.Error(suite.T(), cfg.Validate())
	cfg = Default()
	cfg.Args = `{"a":1}`
	require.Error(suite.T(), cfg.Validate())
	cfg = Default()
	cfg.TracingEnabled = true
	cfg.TracingEndpoint = ""
	require.Error(suite.T(), cfg.Validate())
}
