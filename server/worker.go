package server

import (
	"errors"
	"fmt"
	"sync"
)

// errWorkerStopped is returned by Do once the worker has been stopped.
var errWorkerStopped = errors.New("worker stopped")

// request represents a unit of work to be executed on the worker goroutine.
type request struct {
	fn   func() any
	done chan result
}

// result holds the return value from a worker call.
type result struct {
	value any
	err   error
}

// Worker serializes all VM access through a single goroutine.
// Class construction and lookup are single-threaded; every LSP handler
// goes through the worker to avoid data races.
type Worker struct {
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() any) (res result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker recovered from panic: %v", r)
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value = fn()
	return res
}

// Do submits fn for execution on the worker goroutine and blocks until
// it completes. A panic in fn is returned as an error.
func (w *Worker) Do(fn func() any) (any, error) {
	select {
	case <-w.quit:
		return nil, errWorkerStopped
	default:
	}

	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
