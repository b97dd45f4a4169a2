// Package config defines the stackzner configuration file schema, its
// defaults and validation, and the environment-tunable operation timeouts.
//
// Configuration is read from stackzner.yaml. Credentials never live in the
// file: the Hetzner Cloud token comes from HCLOUD_TOKEN and object storage
// credentials from HETZNER_S3_ACCESS_KEY / HETZNER_S3_SECRET_KEY.
package config
