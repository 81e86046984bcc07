package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// pass is the state shared by every evaluation dispatched for one render.
// The pending counter is incremented right before a task starts and
// decremented exactly once when it returns.
type pass struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
	base   domain.Context

	pending    atomic.Int64
	dispatched atomic.Int64
}

func newPass(parent context.Context, base domain.Context) *pass {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &pass{ctx: ctx, cancel: cancel, base: base}
}

// spawn runs fn asynchronously under the counter. fn is responsible for
// taking the loop.
func (p *pass) spawn(fn func()) {
	p.pending.Add(1)
	p.dispatched.Add(1)
	p.group.Go(func() error {
		defer p.pending.Add(-1)
		fn()
		return nil
	})
}

// live reports whether the pass still accepts work.
func (p *pass) live() bool {
	return p.ctx.Err() == nil
}

// wait blocks until the counter reaches zero. A positive timeout bounds the
// wait; on expiry the pass is cancelled so queued tasks skip their work.
func (p *pass) wait(ctx context.Context, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	defer p.cancel()
	select {
	case <-done:
		return nil
	case <-expired:
		return &domain.BarrierTimeoutError{Pending: int(p.pending.Load()), Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}
