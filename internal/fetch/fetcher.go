package fetch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Fetcher enforces the one-outstanding-request discipline for a single
// logical consumer (one chart, one table). Issuing a new fetch supersedes
// any in-flight attempt: the previous context is cancelled and, should its
// result still arrive, it is discarded instead of applied. Responses do
// not arrive in request order, so staleness is decided by epoch
// comparison, never by arrival order.
type Fetcher[T any] struct {
	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc
}

// NewFetcher creates an epoch-guarded fetcher.
func NewFetcher[T any]() *Fetcher[T] {
	return &Fetcher[T]{}
}

// Fetch runs one logical attempt. applied reports whether the result
// belongs to the current epoch and may be written to consumer-visible
// state; a superseded attempt returns applied=false with a nil error — the
// cancellation is swallowed here and never surfaces as a failure. There is
// no automatic retry: one attempt per explicit trigger.
func (f *Fetcher[T]) Fetch(ctx context.Context, do func(ctx context.Context) (T, error)) (result T, applied bool, err error) {
	var zero T

	f.mu.Lock()
	f.epoch++
	attempt := f.epoch
	if f.cancel != nil {
		f.cancel()
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	slog.Debug("Issuing fetch attempt", "attempt_id", uuid.NewString(), "epoch", attempt)

	value, doErr := do(attemptCtx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if attempt != f.epoch {
		// A newer attempt owns the consumer now; this result is stale.
		return zero, false, nil
	}
	f.cancel = nil
	cancel()

	if doErr != nil {
		if IsCancelled(doErr) || attemptCtx.Err() == context.Canceled {
			return zero, false, nil
		}
		return zero, false, doErr
	}
	return value, true, nil
}

// Cancel supersedes any in-flight attempt without issuing a new one, e.g.
// when the consuming view goes away.
func (f *Fetcher[T]) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
