package sioclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITES                                                                                   */
/*************************************************************************************************/

// Test suite used for deliveryContext unit tests
type DeliveryContextUnitTestSuite struct {
	suite.Suite
}

// Run DeliveryContextUnitTestSuite test suite
func TestDeliveryContextUnitTestSuite(t *testing.T) {
	suite.Run(t, new(DeliveryContextUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test tasks posted from several goroutines are run one at a time and tasks posted by the same
// goroutine are run in order.
func (suite *DeliveryContextUnitTestSuite) TestOrdering() {
	d := newDeliveryContext()
	producers := 4
	tasks := 250
	results := map[int][]int{}
	running := 0
	overlap := false
	wg := sync.WaitGroup{}
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < tasks; i++ {
				i := i
				require.True(suite.T(), d.post(func() {
					running++
					if running > 1 {
						overlap = true
					}
					results[p] = append(results[p], i)
					running--
				}))
			}
		}(p)
	}
	wg.Wait()
	d.stop()
	select {
	case <-d.done:
	case <-time.After(5 * time.Second):
		require.FailNow(suite.T(), "timeout while waiting for the delivery context to stop")
	}
	require.False(suite.T(), overlap)
	for p := 0; p < producers; p++ {
		require.Len(suite.T(), results[p], tasks)
		for i, v := range results[p] {
			require.Equal(suite.T(), i, v)
		}
	}
}

// Test pending tasks are run after stop and new tasks are rejected.
func (suite *DeliveryContextUnitTestSuite) TestStop() {
	d := newDeliveryContext()
	block := make(chan struct{})
	ran := make(chan int, 3)
	require.True(suite.T(), d.post(func() { <-block; ran <- 1 }))
	require.True(suite.T(), d.post(func() { ran <- 2 }))
	d.stop()
	require.False(suite.T(), d.post(func() { ran <- 3 }))
	close(block)
	<-d.done
	close(ran)
	collected := []int{}
	for v := range ran {
		collected = append(collected, v)
	}
	require.Equal(suite.T(), []int{1, 2}, collected)
	// Stopping twice is harmless
	d.stop()
}

// Test a task can post another task.
func (suite *DeliveryContextUnitTestSuite) TestReentrantPost() {
	d := newDeliveryContext()
	done := make(chan struct{})
	d.post(func() {
		d.post(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(suite.T(), "timeout while waiting for the nested task")
	}
	d.stop()
	<-d.done
}
