package reconciler

import "context"

// Result is the outcome of the background half of a mutation.
type Result struct {
	// Applied is false when the mutation was a no-op (unknown id, nothing to clear).
	Applied bool

	// Fallback is set when the change went to the local snapshot.
	Fallback bool

	// Err is the absorbed remote and/or local error, for information only.
	Err error
}

// Pending is a handle on a mutation whose in-memory part has already been
// applied and whose remote part may still be running.
type Pending struct {
	done   chan struct{}
	result Result
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(res Result) *Pending {
	p := newPending()
	p.resolve(res)
	return p
}

func (p *Pending) resolve(res Result) {
	p.result = res
	close(p.done)
}

// Done is closed once the background work has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the background work finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
