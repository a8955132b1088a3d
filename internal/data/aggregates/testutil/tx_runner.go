package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/storykeep-backend/internal/data/aggregates"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

// FlakyTxRunner fails the first Failures attempts with Err before the body
// runs, then hands off to Next. A negative Failures fails every attempt.
// With Next unset the body runs without a transaction.
type FlakyTxRunner struct {
	Next      aggregates.TxRunner
	Err       error
	Failures  int
	CommitErr error

	mu        sync.Mutex
	attempts  int
	commits   int
	rollbacks int
}

var _ aggregates.TxRunner = (*FlakyTxRunner)(nil)

func (r *FlakyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.attempts++
	fail := r.Err != nil && (r.Failures < 0 || r.attempts <= r.Failures)
	r.mu.Unlock()

	if fail {
		r.count(&r.rollbacks)
		return r.Err
	}

	err := r.run(ctx, fn)
	if err == nil && r.CommitErr != nil {
		err = r.CommitErr
	}
	if err != nil {
		r.count(&r.rollbacks)
		return err
	}
	r.count(&r.commits)
	return nil
}

func (r *FlakyTxRunner) run(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r.Next != nil {
		return r.Next.InTx(ctx, fn)
	}
	return fn(dbctx.Context{Ctx: ctx})
}

func (r *FlakyTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

func (r *FlakyTxRunner) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *FlakyTxRunner) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

func (r *FlakyTxRunner) Rollbacks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollbacks
}
