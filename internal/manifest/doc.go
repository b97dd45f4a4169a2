// Package manifest loads and validates deployment manifests: the YAML file
// declaring the resource descriptors and artifact payloads of one
// deployment. Validation happens entirely at load time so a broken manifest
// never reaches the planner or the cloud.
package manifest
