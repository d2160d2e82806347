package browser

import (
	"context"
	"errors"
	"fmt"
)

// Pool hands out one Manager per concurrently running scenario so that no
// browser or context is shared between workers.
type Pool struct {
	managers []*Manager
	free     chan *Manager
}

// NewPool creates size managers that all launch through l
func NewPool(size int, l Launcher, opts Options) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		managers: make([]*Manager, 0, size),
		free:     make(chan *Manager, size),
	}
	for i := 0; i < size; i++ {
		m := NewManager(fmt.Sprintf("worker-%d", i+1), l, opts)
		p.managers = append(p.managers, m)
		p.free <- m
	}
	return p
}

// Size returns the number of managers in the pool
func (p *Pool) Size() int { return len(p.managers) }

// Acquire blocks until a manager is free or ctx is done
func (p *Pool) Acquire(ctx context.Context) (*Manager, error) {
	select {
	case m := <-p.free:
		return m, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquiring browser manager: %w", ctx.Err())
	}
}

// Release hands a manager back. Its browser stays up for the next scenario.
func (p *Pool) Release(m *Manager) {
	if m == nil {
		return
	}
	p.free <- m
}

// Cleanup closes every context and browser the pool launched
func (p *Pool) Cleanup() error {
	var errs []error
	for _, m := range p.managers {
		if err := m.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}
