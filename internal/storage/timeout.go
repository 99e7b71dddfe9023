package storage

import (
	"context"
	"time"
)

// OpContext derives the context a single storage operation runs under.
//
// A caller context that is already done means the operation never starts and
// its error is returned. Otherwise the operation is detached from later caller
// cancellation, so a started write is never abandoned halfway, and is bounded
// by timeout instead (DefaultOpTimeout when timeout <= 0).
func OpContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	return opCtx, cancel, nil
}
