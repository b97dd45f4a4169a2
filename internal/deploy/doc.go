// Package deploy contains the provider-agnostic deployment core.
//
// A deployment is declared as a set of resource [Descriptor] values with
// explicit dependencies. [BuildPlan] orders them into concurrency tiers,
// [Executor.Apply] realizes them against a [Provider] with idempotent
// re-entry and bounded per-tier parallelism, and [Rollback] tears realized
// resources down in reverse order when a run fails.
//
// The package knows nothing about Hetzner Cloud; production deployments
// plug in the adapter from internal/platform/hcloud.
package deploy
