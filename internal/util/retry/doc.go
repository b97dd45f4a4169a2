// Package retry provides exponential backoff retry logic for transient failures.
//
// The [WithExponentialBackoff] function retries an operation with configurable
// max attempts, initial delay, and maximum delay. Errors wrapped with [Fatal]
// short-circuit the retry loop. It is used for Hetzner Cloud API calls and
// other operations that may fail transiently.
package retry
