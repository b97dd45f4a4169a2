package health

import (
	"context"
	"fmt"

	"github.com/juju/clock"

	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/util/async"
)

// Manager drives health observation and pool registration for a run.
type Manager struct {
	provider    deploy.Provider
	observer    deploy.Observer
	clk         clock.Clock
	concurrency int
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithObserver routes events to the given observer.
func WithObserver(observer deploy.Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithClock substitutes the clock used for probe scheduling.
func WithClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clk = clk
	}
}

// WithConcurrency bounds how many endpoints are watched at once.
// Zero or negative means no bound.
func WithConcurrency(limit int) ManagerOption {
	return func(m *Manager) {
		m.concurrency = limit
	}
}

// NewManager creates a Manager backed by the given provider.
func NewManager(provider deploy.Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider: provider,
		observer: deploy.NopObserver{},
		clk:      clock.WallClock,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Await watches every endpoint behind the given bindings until each is
// registered with its pool, marked unhealthy, or the context is cancelled.
// The returned report covers all endpoints even when the error is non-nil.
func (m *Manager) Await(ctx context.Context, bindings []Binding) (*Report, error) {
	report := &Report{}
	if len(bindings) == 0 {
		return report, nil
	}

	var tasks []async.Task
	for _, b := range bindings {
		if err := b.Check.validate(); err != nil {
			return nil, fmt.Errorf("health check for %s: %w", b.InstanceID, err)
		}

		endpoints, err := m.provider.Endpoints(ctx, b.Instance)
		if err != nil {
			return nil, fmt.Errorf("enumerate endpoints of %s: %w", b.InstanceID, err)
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("instance %s exposes no endpoints to probe", b.InstanceID)
		}

		for _, ep := range endpoints {
			member := &Membership{
				InstanceID: b.InstanceID,
				Address:    ep.Address,
				PoolID:     b.PoolID,
				Status:     StatusUnknown,
			}
			report.Members = append(report.Members, member)

			tasks = append(tasks, async.Task{
				Name: fmt.Sprintf("%s %s", b.InstanceID, ep.Address),
				Func: func(ctx context.Context) error {
					return m.watch(ctx, b, ep, member)
				},
			})
		}
	}

	err := async.Run(ctx, tasks, m.concurrency)
	return report, err
}

// watch probes one endpoint until it is registered, unhealthy, or cancelled.
func (m *Manager) watch(ctx context.Context, b Binding, ep deploy.Endpoint, member *Membership) error {
	check := b.Check
	deadline := m.clk.Now().Add(check.Window)
	streak := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.provider.Probe(ctx, ep, check.Probe); err != nil {
			streak = 0
			m.observer.Event(deploy.Event{
				Type:     deploy.EventProbeFailure,
				Phase:    "health",
				Resource: b.InstanceID,
				Message:  fmt.Sprintf("probe of %s failed: %v", ep.Address, err),
			})
		} else {
			streak++
			m.observer.Event(deploy.Event{
				Type:     deploy.EventProbeSuccess,
				Phase:    "health",
				Resource: b.InstanceID,
				Message:  fmt.Sprintf("probe of %s succeeded (%d/%d)", ep.Address, streak, check.Threshold),
			})
		}

		if streak >= check.Threshold {
			member.Status = StatusHealthy
			if err := m.provider.AddToPool(ctx, b.Pool, ep); err != nil {
				member.Err = err
				return fmt.Errorf("register %s with pool %s: %w", ep.Address, b.PoolID, err)
			}
			member.Registered = true
			m.observer.Event(deploy.Event{
				Type:     deploy.EventMemberRegistered,
				Phase:    "health",
				Resource: b.InstanceID,
				Message:  fmt.Sprintf("%s registered with pool %s", ep.Address, b.PoolID),
			})
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clk.After(check.Interval):
		}

		if !m.clk.Now().Before(deadline) {
			member.Status = StatusUnhealthy
			err := fmt.Errorf("%s did not become healthy within %s", ep.Address, check.Window)
			member.Err = err
			return err
		}
	}
}
