package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/clock"

	"github.com/imamik/stackzner/internal/util/retry"
)

// Rollback tears realized resources down in strict reverse realization
// order. It is best-effort: a failed delete is recorded and the pass
// continues with the remaining resources.
type Rollback struct {
	provider  Provider
	observer  Observer
	clk       clock.Clock
	retryOpts []retry.Option
}

// RollbackOption configures a Rollback.
type RollbackOption func(*Rollback)

// WithRollbackObserver sets the observer receiving teardown events.
func WithRollbackObserver(obs Observer) RollbackOption {
	return func(r *Rollback) {
		r.observer = obs
	}
}

// WithRollbackClock sets the clock used for retry backoff.
func WithRollbackClock(clk clock.Clock) RollbackOption {
	return func(r *Rollback) {
		r.clk = clk
	}
}

// WithRollbackRetryOptions sets the retry policy for delete calls.
func WithRollbackRetryOptions(opts ...retry.Option) RollbackOption {
	return func(r *Rollback) {
		r.retryOpts = opts
	}
}

// NewRollback creates a Rollback using the given provider.
func NewRollback(provider Provider, opts ...RollbackOption) *Rollback {
	r := &Rollback{
		provider: provider,
		observer: NopObserver{},
		clk:      clock.WallClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run deletes the given states in reverse order. Only states that reached
// created are touched; pending and failed descriptors are skipped. Deleted
// states transition to rolled-back; states whose delete failed keep their
// status so the final report shows what was left behind.
//
// The returned error joins all delete failures. Transient delete errors are
// retried; deleting an already-absent resource counts as success.
func (r *Rollback) Run(ctx context.Context, states []*ResourceState) error {
	var errs []error

	for i := len(states) - 1; i >= 0; i-- {
		st := states[i]
		if st.Status != StatusCreated {
			continue
		}

		r.observer.Event(Event{
			Type:     EventResourceDeleting,
			Resource: st.Descriptor.ID,
			Message:  fmt.Sprintf("deleting %s", st.Descriptor.Kind),
		})

		err := retry.WithExponentialBackoff(ctx, func() error {
			deleteErr := r.provider.Delete(ctx, st.Handle)
			if deleteErr != nil && IsPermanent(deleteErr) {
				return retry.Fatal(deleteErr)
			}
			return deleteErr
		}, append([]retry.Option{retry.WithClock(r.clk)}, r.retryOpts...)...)

		if err != nil {
			errs = append(errs, fmt.Errorf("rollback of %s: %w", st.Descriptor.ID, err))
			r.observer.Event(Event{
				Type:     EventResourceFailed,
				Resource: st.Descriptor.ID,
				Message:  fmt.Sprintf("deletion failed: %v", err),
			})
			continue
		}

		st.Status = StatusRolledBack
		r.observer.Event(Event{
			Type:     EventResourceDeleted,
			Resource: st.Descriptor.ID,
			Message:  fmt.Sprintf("%s deleted", st.Descriptor.Kind),
		})
	}

	return errors.Join(errs...)
}
