package deploy

import "context"

// Probe protocols understood by providers.
const (
	ProtocolTCP  = "tcp"
	ProtocolHTTP = "http"
)

// ProbeSpec describes how to health-check one endpoint.
type ProbeSpec struct {
	// Protocol is "tcp" or "http".
	Protocol string
	Port     int
	// Path is the request path for http probes.
	Path string
}

// Endpoint is one probeable network endpoint backed by a realized instance.
// An instance-set realization enumerates one endpoint per member server.
type Endpoint struct {
	// InstanceID names the endpoint uniquely within a run, typically the
	// descriptor id or the member server name for instance sets.
	InstanceID string
	// Address is the network address probes and pool registration use.
	Address string
	// Handle is the provider handle of the backing instance.
	Handle Handle
}

// Provider is the capability surface the deployment core needs from a cloud.
// The production implementation lives in internal/platform/hcloud; tests use
// a scripted fake.
//
// Create and Delete return errors classified with Transient, Permanent, or
// AlreadyExistsError so the executor can decide whether to retry.
type Provider interface {
	// Exists reports whether the resource declared by desc is already
	// realized, returning its handle when it is.
	Exists(ctx context.Context, desc Descriptor) (Handle, bool, error)

	// Create realizes the resource declared by desc and returns its handle.
	Create(ctx context.Context, desc Descriptor) (Handle, error)

	// Delete removes the realized resource. Deleting an absent resource
	// succeeds, which keeps rollback and destroy re-runnable.
	Delete(ctx context.Context, handle Handle) error

	// Probe health-checks a single endpoint. A nil error means healthy.
	Probe(ctx context.Context, ep Endpoint, spec ProbeSpec) error

	// AddToPool registers an endpoint with a load balancer pool.
	// Registering an already-registered endpoint succeeds.
	AddToPool(ctx context.Context, pool Handle, ep Endpoint) error

	// Endpoints enumerates the probeable endpoints behind an instance or
	// instance-set handle.
	Endpoints(ctx context.Context, handle Handle) ([]Endpoint, error)
}
