package dialogue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/yarnvm/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("worker stopped")

// request is a unit of work to run on the dialogue goroutine.
type request struct {
	fn   func(*Dialogue) (any, error)
	done chan response
}

type response struct {
	value any
	err   error
}

// Worker serializes all access to one Dialogue through a single
// goroutine. A Dialogue is single-threaded; hosts that drive it from
// several goroutines (network handlers, timers) go through a Worker.
type Worker struct {
	d        *Dialogue
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker(d *Dialogue) *Worker {
	w := &Worker{
		d:        d,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

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

// execute runs fn, turning a panic into an error.
func (w *Worker) execute(fn func(*Dialogue) (any, error)) (res response) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic in dialogue worker: %v", r)
		}
	}()
	res.value, res.err = fn(w.d)
	return res
}

// Do runs fn on the worker goroutine and waits for it.
func (w *Worker) Do(fn func(*Dialogue) (any, error)) (any, error) {
	req := request{fn: fn, done: make(chan response, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Next runs Dialogue.Next on the worker.
func (w *Worker) Next() (vm.Result, error) {
	v, err := w.Do(func(d *Dialogue) (any, error) { return d.Next() })
	if v == nil {
		return nil, err
	}
	return v.(vm.Result), err
}

// Choose runs Dialogue.Choose on the worker.
func (w *Worker) Choose(index int) error {
	_, err := w.Do(func(d *Dialogue) (any, error) { return nil, d.Choose(index) })
	return err
}

// Start runs Dialogue.Start on the worker.
func (w *Worker) Start(node string) error {
	_, err := w.Do(func(d *Dialogue) (any, error) { return nil, d.Start(node) })
	return err
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
