package sioclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for SessionConfigurationOptions unit tests
type SessionConfigurationOptionsUnitTestSuite struct {
	suite.Suite
}

// Run SessionConfigurationOptionsUnitTestSuite test suite
func TestSessionConfigurationOptionsUnitTestSuite(t *testing.T) {
	suite.Run(t, new(SessionConfigurationOptionsUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test methods used to set options.
func (suite *SessionConfigurationOptionsUnitTestSuite) TestSetters() {
	opts := NewSessionConfigurationOptions().
		WithAutoReconnect(false).
		WithReconnectBaseDelay(250 * time.Millisecond).
		WithReconnectMaxDelay(10 * time.Second).
		WithReconnectMultiplier(1.5).
		WithHandshakePath("/io/1/")
	require.False(suite.T(), opts.AutoReconnect)
	require.Equal(suite.T(), 250*time.Millisecond, opts.ReconnectBaseDelay)
	require.Equal(suite.T(), 10*time.Second, opts.ReconnectMaxDelay)
	require.Equal(suite.T(), 1.5, opts.ReconnectMultiplier)
	require.Equal(suite.T(), "/io/1/", opts.HandshakePath)
}

// Test option validation
func (suite *SessionConfigurationOptionsUnitTestSuite) TestValidate() {
	// Defaults are valid
	opts := NewSessionConfigurationOptions()
	require.NoError(suite.T(), Validate(opts))
	require.True(suite.T(), opts.AutoReconnect)
	require.Equal(suite.T(), time.Second, opts.ReconnectBaseDelay)
	require.Equal(suite.T(), time.Minute, opts.ReconnectMaxDelay)
	require.Equal(suite.T(), DefaultHandshakePath, opts.HandshakePath)
	// Invalid base delay
	require.Error(suite.T(), Validate(NewSessionConfigurationOptions().WithReconnectBaseDelay(0)))
	// Max delay lower than base delay
	require.Error(suite.T(), Validate(NewSessionConfigurationOptions().
		WithReconnectBaseDelay(2*time.Second).
		WithReconnectMaxDelay(time.Second)))
	// Invalid multiplier
	require.Error(suite.T(), Validate(NewSessionConfigurationOptions().WithReconnectMultiplier(0.5)))
	// Invalid handshake paths
	require.Error(suite.T(), Validate(NewSessionConfigurationOptions().WithHandshakePath("")))
	require.Error(suite.T(), Validate(NewSessionConfigurationOptions().WithHandshakePath("socket.io/1/")))
	// Nil options
	require.Error(suite.T(), Validate(nil))
}
