// Package objstore provides the S3-compatible object storage backend used
// for artifact distribution on Hetzner Object Storage.
//
// It covers bucket and object lifecycle plus presigned GET URLs, and adapts
// that surface to the artifact store interface with one bucket per
// deployment and container names mapped to key prefixes.
package objstore
