package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// TxRunner opens the transaction a single aggregate write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner commits when fn returns nil and rolls back on error or panic.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return gormTxRunner{db: db}
}

func (r gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "no database configured", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// RetryPolicy bounds how often a conflicting or transient write is replayed.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt number between tries.
	Backoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Backoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BaseDeps is shared by every aggregate. Zero fields get working defaults:
// a GORM runner and CAS guard over DB, no-op hooks, a no-op logger and three
// attempts.
type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Retry    RetryPolicy
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	d.Retry = d.Retry.withDefaults()
	return d
}

// executeWrite runs fn in one transaction and reports the attempt to hooks.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	op = opName(op)
	start := time.Now()
	err := MapError(op, deps.Runner.InTx(ctx, fn))

	switch domainagg.CodeOf(err) {
	case domainagg.CodeConflict:
		deps.Hooks.IncConflict(op)
	case domainagg.CodeRetryable:
		deps.Hooks.IncRetry(op)
	}
	deps.Hooks.ObserveOperation(op, aggregateErrorStatus(err), time.Since(start))
	return err
}

// executeWriteWithRetry replays the whole transaction while the failure is
// transient. A conflict still failing on the last attempt becomes retryable
// so callers see a single "try again" code.
func executeWriteWithRetry(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	op = opName(op)
	var err error
	for attempt := 1; ; attempt++ {
		err = executeWrite(ctx, deps, op, fn)
		if err == nil || !domainagg.CodeOf(err).Transient() {
			return err
		}
		if attempt >= deps.Retry.MaxAttempts {
			break
		}
		deps.Log.Debug("ledger write replayed", "op", op, "attempt", attempt, "error", err)
		if werr := deps.Retry.wait(ctx, attempt); werr != nil {
			return MapError(op, werr)
		}
	}
	if domainagg.IsCode(err, domainagg.CodeConflict) {
		return domainagg.NewError(domainagg.CodeRetryable, op, "concurrent update; retries exhausted", err)
	}
	return err
}

func opName(op string) string {
	if op = strings.TrimSpace(op); op != "" {
		return op
	}
	return "aggregate.write"
}

// aggregateErrorStatus is the hook status label: "success" or the error code.
func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeOf(MapError("aggregate.status", err)))
}
