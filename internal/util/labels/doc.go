// Package labels provides consistent labeling for Hetzner Cloud resources.
//
// All labels use the stackzner.io domain prefix and follow a builder pattern
// for constructing label sets with deployment, resource, kind, and manager
// identification.
package labels
