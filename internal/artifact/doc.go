// Package artifact publishes bootstrap payloads to the content store and
// mints time-scoped read grants for instances to fetch them.
//
// Instance descriptors reference payloads as artifact://<payload id> inside
// their configuration values. Before provisioning, [Distributor.SubstituteGrants]
// replaces every reference with a signed URL whose lifetime is
// issuedAt + ttl. The orchestrator cannot observe an instance fetching a
// grant after expiry; such an instance simply fails its health gate.
package artifact
