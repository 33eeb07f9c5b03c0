package wscengine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for WebsocketTransportConfigurationOptions unit tests
type WebsocketTransportOptionsUnitTestSuite struct {
	suite.Suite
}

// Run WebsocketTransportOptionsUnitTestSuite test suite
func TestWebsocketTransportOptionsUnitTestSuite(t *testing.T) {
	suite.Run(t, new(WebsocketTransportOptionsUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test methods used to set options.
func (suite *WebsocketTransportOptionsUnitTestSuite) TestSetters() {
	// Expectations
	expectedConnectTimeoutMs := int64(1500)
	expectedCloseTimeoutMs := int64(0)
	// Create options with default settings and set options
	opts := NewWebsocketTransportConfigurationOptions().
		WithConnectTimeoutMs(expectedConnectTimeoutMs).
		WithCloseTimeoutMs(expectedCloseTimeoutMs)
	// Assertions
	require.Equal(suite.T(), expectedConnectTimeoutMs, opts.ConnectTimeoutMs)
	require.Equal(suite.T(), expectedCloseTimeoutMs, opts.CloseTimeoutMs)
}

// Test option validation
func (suite *WebsocketTransportOptionsUnitTestSuite) TestValidate() {
	// Validate default options are valid
	err := Validate(NewWebsocketTransportConfigurationOptions())
	require.NoError(suite.T(), err)
	// Test invalid ConnectTimeoutMs
	err = Validate(NewWebsocketTransportConfigurationOptions().
		WithConnectTimeoutMs(-1))
	require.Error(suite.T(), err)
	// Test invalid CloseTimeoutMs
	err = Validate(NewWebsocketTransportConfigurationOptions().
		WithCloseTimeoutMs(-1))
	require.Error(suite.T(), err)
	// Test nil options
	err = Validate(nil)
	require.Error(suite.T(), err)
}
