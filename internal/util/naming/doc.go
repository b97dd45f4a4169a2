// Package naming provides consistent naming functions for Hetzner Cloud resources.
//
// Resource names follow the pattern {deployment}-{descriptor id}, with member
// servers of an instance set suffixed by their index. Deterministic names keep
// repeated runs idempotent: the same descriptor always maps to the same cloud
// resource.
package naming
