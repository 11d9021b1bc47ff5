package grading

import (
	"context"
	"fmt"
)

// Pending is the handle of a fetch triggered by a selection. It resolves
// once the response has been applied, discarded as stale, or has failed.
type Pending struct {
	tier string
	done chan struct{}
	err  error
}

func newPending(tier string) *Pending {
	return &Pending{tier: tier, done: make(chan struct{})}
}

// resolved returns a Pending that is already complete.
func resolved(tier string, err error) *Pending {
	p := newPending(tier)
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Tier names the cascade tier the fetch belongs to.
func (p *Pending) Tier() string { return p.tier }

// Done is closed when the fetch resolves.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome. It is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the fetch resolves or ctx ends. The result is nil when the
// response was applied, ErrStale when a newer selection superseded it, or the
// collaborator error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", p.tier, ctx.Err())
	}
}
