package health

import (
	"fmt"
	"time"

	"github.com/imamik/stackzner/internal/deploy"
)

// Status is the observed health of one pool member.
type Status string

const (
	// StatusUnknown means the endpoint is still being observed.
	StatusUnknown Status = "unknown"
	// StatusHealthy means the endpoint met its consecutive-success threshold.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy means the observation window elapsed before the
	// threshold was met. Terminal for the run.
	StatusUnhealthy Status = "unhealthy"
)

// CheckSpec configures how one instance is probed before registration.
type CheckSpec struct {
	// Probe is handed to the provider for each attempt.
	Probe deploy.ProbeSpec
	// Interval is the pause between consecutive probe attempts.
	Interval time.Duration
	// Threshold is the number of consecutive successes required before the
	// endpoint counts as healthy. A single failure resets the streak.
	Threshold int
	// Window bounds the whole observation. When it elapses before the
	// threshold is met the endpoint is marked unhealthy.
	Window time.Duration
}

// DefaultCheck returns the check used when a manifest names no probe.
func DefaultCheck() CheckSpec {
	return CheckSpec{
		Probe:     deploy.ProbeSpec{Protocol: deploy.ProtocolTCP, Port: 80},
		Interval:  5 * time.Second,
		Threshold: 3,
		Window:    2 * time.Minute,
	}
}

func (s CheckSpec) validate() error {
	switch s.Probe.Protocol {
	case deploy.ProtocolTCP, deploy.ProtocolHTTP:
	default:
		return fmt.Errorf("unsupported probe protocol %q", s.Probe.Protocol)
	}
	if s.Probe.Port < 1 || s.Probe.Port > 65535 {
		return fmt.Errorf("invalid probe port %d", s.Probe.Port)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", s.Interval)
	}
	if s.Threshold < 1 {
		return fmt.Errorf("probe threshold must be at least 1, got %d", s.Threshold)
	}
	if s.Window <= 0 {
		return fmt.Errorf("probe window must be positive, got %s", s.Window)
	}
	return nil
}

// Binding ties a realized instance to the pool it should join and the check
// that gates admission.
type Binding struct {
	// InstanceID is the descriptor id of the instance or instance set.
	InstanceID string
	// Instance is the provider handle whose endpoints are observed.
	Instance deploy.Handle
	// PoolID is the descriptor id of the target load balancer.
	PoolID string
	// Pool is the provider handle of the target load balancer.
	Pool deploy.Handle
	// Check gates admission into the pool.
	Check CheckSpec
}

// Membership records the outcome for one endpoint.
type Membership struct {
	// InstanceID is the owning descriptor id.
	InstanceID string
	// Address is the probed endpoint address.
	Address string
	// PoolID is the descriptor id of the pool the endpoint was bound to.
	PoolID string
	// Status is the final observed health.
	Status Status
	// Registered reports whether the endpoint joined its pool.
	Registered bool
	// Err holds the failure that stopped this member, if any.
	Err error
}

// Report collects memberships for every watched endpoint of a run.
type Report struct {
	Members []*Membership
}

// Healthy reports whether every watched endpoint registered with its pool.
func (r *Report) Healthy() bool {
	for _, m := range r.Members {
		if !m.Registered || m.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the memberships that did not reach registered.
func (r *Report) Failures() []*Membership {
	var failed []*Membership
	for _, m := range r.Members {
		if !m.Registered || m.Err != nil {
			failed = append(failed, m)
		}
	}
	return failed
}
