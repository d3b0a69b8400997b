package runner

import (
	"context"
	"errors"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"go.uber.org/multierr"
	"sync"
)

// ErrPoolClosed is returned when running on a closed Pool
var ErrPoolClosed = errors.New("runner pool is closed")

// Pool is a simple pool of Runners loaded with the same Model so frames can
// be inferred on concurrently.  The Pool is itself a Runner
type Pool struct {
	// pool of runners
	runners chan Runner
	// size of pool
	size int
	// done is closed when the pool is closed
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	err    error
}

// NewPool creates a new runner pool of the given size, calling create once
// for every slot
func NewPool(size int, create func(i int) (Runner, error)) (*Pool, error) {

	if size <= 0 {
		return nil, fmt.Errorf("%w: pool size %d must be positive",
			yolostream.ErrInvalidInput, size)
	}

	p := &Pool{
		runners: make(chan Runner, size),
		size:    size,
		done:    make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		r, err := create(i)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, fmt.Errorf("error creating runner %d: %w", i, err)
		}

		// attach to pool
		p.Return(r)
	}

	return p, nil
}

// Size returns the number of runners in the pool
func (p *Pool) Size() int {
	return p.size
}

// Get a runner from the pool, blocking until one is free or the context is
// done
func (p *Pool) Get(ctx context.Context) (Runner, error) {
	select {
	case r := <-p.runners:
		return r, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return a runner to the pool
func (p *Pool) Return(r Runner) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		// nothing left to hand it to
		_ = r.Close()
		return
	}

	select {
	case p.runners <- r:
	default:
		// pool is full
		_ = r.Close()
	}
}

// Run takes a runner from the pool, runs the input on it and returns the
// runner to the pool
func (p *Pool) Run(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {

	r, err := p.Get(ctx)

	if err != nil {
		return yolostream.Tensor{}, err
	}

	defer p.Return(r)

	return r.Run(ctx, in)
}

// Close the pool and all idle runners in it.  Runners checked out at the
// time are closed when returned
func (p *Pool) Close() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.err
	}

	p.closed = true
	close(p.done)

	for {
		select {
		case r := <-p.runners:
			p.err = multierr.Append(p.err, r.Close())
		default:
			return p.err
		}
	}
}
