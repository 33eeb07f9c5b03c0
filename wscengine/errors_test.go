package wscengine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for TransportConnectError unit tests
type TransportConnectErrorUnitTestSuite struct {
	suite.Suite
}

// Run TransportConnectErrorUnitTestSuite test suite
func TestTransportConnectErrorUnitTestSuite(t *testing.T) {
	suite.Run(t, new(TransportConnectErrorUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test Error
func (suite *TransportConnectErrorUnitTestSuite) TestError() {
	// Expectations
	err := fmt.Errorf("root error")
	expected := fmt.Sprint("websocket transport failed to connect: ", err)
	require.Equal(suite.T(), expected, TransportConnectError{Err: err}.Error())
}

// Test Unwrap
func (suite *TransportConnectErrorUnitTestSuite) TestUnwrap() {
	err := TransportConnectError{Err: fmt.Errorf("dial: %w", context.DeadlineExceeded)}
	require.True(suite.T(), errors.Is(err, context.DeadlineExceeded))
	require.Equal(suite.T(), "dial: context deadline exceeded", err.Unwrap().Error())
}
