package sioclient

import (
	"sync"

	"github.com/eapache/queue"
)

// Ordered delivery context: tasks are run one at a time, in the order they have been posted, by
// a single goroutine. Session state is only mutated by tasks.
type deliveryContext struct {
	// Mutex which protects tasks and stopping
	mu sync.Mutex
	// Pending tasks
	tasks *queue.Queue
	// Signal used to wake up the delivery goroutine
	wake chan struct{}
	// True once stop has been called
	stopping bool
	// Closed when the delivery goroutine exits
	done chan struct{}
}

// Create a delivery context and start its goroutine.
func newDeliveryContext() *deliveryContext {
	d := &deliveryContext{
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Post a task. Return false if the delivery context has been stopped.
func (d *deliveryContext) post(task func()) bool {
	d.mu.Lock()
	if d.stopping {
		d.mu.Unlock()
		return false
	}
	d.tasks.Add(task)
	d.mu.Unlock()
	d.signal()
	return true
}

// Stop accepting tasks. The delivery goroutine exits once pending tasks have been run.
func (d *deliveryContext) stop() {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
	d.signal()
}

func (d *deliveryContext) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run tasks until stopped.
func (d *deliveryContext) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if d.tasks.Length() == 0 {
			stopping := d.stopping
			d.mu.Unlock()
			if stopping {
				return
			}
			<-d.wake
			continue
		}
		task := d.tasks.Remove().(func())
		d.mu.Unlock()
		task()
	}
}
