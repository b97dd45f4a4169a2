package deploy

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/clock"

	"github.com/imamik/stackzner/internal/util/async"
	"github.com/imamik/stackzner/internal/util/retry"
)

const defaultConcurrency = 4

// Executor realizes a plan against a provider, tier by tier.
type Executor struct {
	provider    Provider
	observer    Observer
	clk         clock.Clock
	concurrency int
	retryOpts   []retry.Option
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithObserver sets the observer receiving run events.
func WithObserver(obs Observer) ExecutorOption {
	return func(e *Executor) {
		e.observer = obs
	}
}

// WithClock sets the clock used for retry backoff. Tests inject a fake clock.
func WithClock(clk clock.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clk = clk
	}
}

// WithConcurrency bounds how many resources of one tier are realized at once.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		e.concurrency = n
	}
}

// WithRetryOptions sets the retry policy for create and delete calls.
func WithRetryOptions(opts ...retry.Option) ExecutorOption {
	return func(e *Executor) {
		e.retryOpts = opts
	}
}

// NewExecutor creates an Executor with the given provider.
func NewExecutor(provider Provider, opts ...ExecutorOption) *Executor {
	e := &Executor{
		provider:    provider,
		observer:    NopObserver{},
		clk:         clock.WallClock,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply realizes the plan tier by tier. Resources within a tier are created
// concurrently, bounded by the configured concurrency; a tier must fully
// settle before the next one starts.
//
// Re-entry is idempotent: resources the provider reports as existing are
// adopted without a create call. Transient provider failures are retried
// with exponential backoff; permanent ones fail the descriptor immediately.
//
// On any failure, or on context cancellation, the in-flight tier settles,
// later tiers stay pending, and realized resources are rolled back in
// reverse realization order. The returned Result is always populated, also
// on error.
func (e *Executor) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	result := newResult(plan)

	// Completion order across tiers, recorded as creates settle. Rollback
	// walks it backwards.
	var mu sync.Mutex
	var realized []*ResourceState
	record := func(st *ResourceState) {
		mu.Lock()
		realized = append(realized, st)
		mu.Unlock()
	}

	var runErr error
	for i, tier := range plan.Tiers {
		e.observer.Event(Event{
			Type:    EventTierStarted,
			Message: fmt.Sprintf("tier %d/%d: %d resource(s)", i+1, len(plan.Tiers), len(tier)),
		})

		tasks := make([]async.Task, len(tier))
		for j, desc := range tier {
			st := result.State(desc.ID)
			tasks[j] = async.Task{
				Name: desc.ID,
				Func: func(ctx context.Context) error {
					return e.realize(ctx, st, record)
				},
			}
		}

		err := async.Run(ctx, tasks, e.concurrency)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			runErr = fmt.Errorf("tier %d failed: %w", i+1, err)
			break
		}

		e.observer.Event(Event{
			Type:    EventTierCompleted,
			Message: fmt.Sprintf("tier %d/%d settled", i+1, len(plan.Tiers)),
		})
		e.observer.Progress("provision", i+1, len(plan.Tiers))
	}

	if runErr == nil {
		return result, nil
	}

	// Teardown must proceed even when the run context is already
	// cancelled, so it runs detached from the parent's cancellation.
	rb := NewRollback(e.provider,
		WithRollbackObserver(e.observer),
		WithRollbackClock(e.clk),
		WithRollbackRetryOptions(e.retryOpts...))
	result.RolledBack = true
	result.RollbackErr = rb.Run(context.WithoutCancel(ctx), realized)

	return result, runErr
}

// realize drives one descriptor from pending to created (or failed). The
// record callback captures successful realizations in completion order.
func (e *Executor) realize(ctx context.Context, st *ResourceState, record func(*ResourceState)) error {
	desc := st.Descriptor

	// A cancelled run starts no new work; the descriptor stays pending.
	if err := ctx.Err(); err != nil {
		return err
	}

	st.Status = StatusInProgress

	handle, exists, err := e.provider.Exists(ctx, desc)
	if err != nil {
		st.Status = StatusFailed
		st.Err = err
		e.observer.Event(Event{
			Type:     EventResourceFailed,
			Resource: desc.ID,
			Message:  fmt.Sprintf("existence check failed: %v", err),
		})
		return err
	}

	if exists {
		st.Handle = handle
		st.Status = StatusCreated
		record(st)
		e.observer.Event(Event{
			Type:     EventResourceExists,
			Resource: desc.ID,
			Message:  fmt.Sprintf("%s already exists", desc.Kind),
			Fields:   map[string]string{"handle": string(handle)},
		})
		return nil
	}

	e.observer.Event(Event{
		Type:     EventResourceCreating,
		Resource: desc.ID,
		Message:  fmt.Sprintf("creating %s", desc.Kind),
	})

	err = retry.WithExponentialBackoff(ctx, func() error {
		h, createErr := e.provider.Create(ctx, desc)
		if createErr != nil {
			if IsPermanent(createErr) || IsAlreadyExists(createErr) {
				return retry.Fatal(createErr)
			}
			return createErr
		}
		handle = h
		return nil
	}, append([]retry.Option{retry.WithClock(e.clk)}, e.retryOpts...)...)

	if err != nil {
		st.Status = StatusFailed
		st.Err = err
		e.observer.Event(Event{
			Type:     EventResourceFailed,
			Resource: desc.ID,
			Message:  fmt.Sprintf("creation failed: %v", err),
		})
		return err
	}

	st.Handle = handle
	st.Status = StatusCreated
	record(st)
	e.observer.Event(Event{
		Type:     EventResourceCreated,
		Resource: desc.ID,
		Message:  fmt.Sprintf("%s created", desc.Kind),
		Fields:   map[string]string{"handle": string(handle)},
	})
	return nil
}
