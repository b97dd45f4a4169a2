// Package async provides bounded parallel task execution with error
// collection.
//
// The [Run] function executes multiple operations concurrently, at most a
// configurable number at a time, and returns all errors joined. It is used
// throughout provisioning to parallelize independent infrastructure
// operations within a concurrency tier.
package async
