// Package hcloud realizes deployment descriptors as Hetzner Cloud resources.
// It is the production implementation of the deploy.Provider interface.
//
// # Architecture
//
// The package is organized into domain-specific modules:
//
//   - real_client.go: Client initialization and configuration
//   - operations.go: Generic operations for Delete and Ensure patterns
//   - adapter.go: deploy.Provider implementation dispatching on descriptor kind
//   - handle.go: Opaque handle encoding (kind, descriptor id, provider id)
//   - network.go: Network and subnet management
//   - firewall.go: Firewall and firewall rule management
//   - server.go: Server lifecycle and endpoint enumeration
//   - load_balancer.go: Load balancer, service, and pool target management
//   - placement_group.go: Placement groups backing instance sets
//   - ssh_key.go: Administrative SSH key management
//   - storage.go: Object storage kinds (accounts, containers, blobs)
//   - probe.go: TCP and HTTP endpoint probing
//   - errors.go: Error classification for the executor's retry decisions
//
// # Kind mapping
//
// network maps to a Network, subnet to a Network subnet, security-group to a
// Firewall applied to the deployment's label selector, security-rule to a
// rule merged into its group's rule set, compute-instance to a Server,
// instance-set to a placement group with one Server per member,
// load-balancer to a Load Balancer, lb-rule to a Load Balancer service,
// health-probe to a validated probe definition with no cloud footprint, and
// the storage kinds to a bucket, a key prefix, and an object.
//
// # Generic Operations
//
// DeleteOperation and EnsureOperation provide consistent get-or-create and
// idempotent-delete semantics across resource types. Neither retries:
// failures are classified into the deploy error taxonomy and the executor
// decides whether another attempt is worth it.
//
// # Timeouts
//
// Operation deadlines come from config.LoadTimeouts and are tunable through
// STACKZNER_TIMEOUT_CREATE and STACKZNER_TIMEOUT_DELETE.
package hcloud
