package labels

// Standard label keys for Hetzner Cloud resources.
// Using stackzner.io prefix for clear namespacing.
const (
	// KeyDeployment identifies which deployment a resource belongs to
	KeyDeployment = "stackzner.io/deployment"

	// KeyResource identifies the descriptor a resource realizes
	KeyResource = "stackzner.io/resource"

	// KeyKind identifies the descriptor kind of a resource
	KeyKind = "stackzner.io/kind"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "stackzner.io/managed-by"
)

// ManagedBy values
const (
	ManagedByStackzner = "stackzner"
)

// LabelBuilder provides a fluent interface for building Hetzner Cloud resource labels.
// Labels are used to identify and group resources belonging to the same deployment.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the deployment name pre-set.
func NewLabelBuilder(deployment string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyDeployment: deployment,
			KeyManagedBy:  ManagedByStackzner,
		},
	}
}

// WithResource adds the descriptor id the resource realizes.
func (lb *LabelBuilder) WithResource(id string) *LabelBuilder {
	lb.labels[KeyResource] = id
	return lb
}

// WithKind adds the descriptor kind label.
func (lb *LabelBuilder) WithKind(kind string) *LabelBuilder {
	lb.labels[KeyKind] = kind
	return lb
}

// WithManagedBy sets who manages this resource.
func (lb *LabelBuilder) WithManagedBy(manager string) *LabelBuilder {
	lb.labels[KeyManagedBy] = manager
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
// Returns a copy to prevent external mutations.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForDeployment returns a label selector string for all resources in a deployment.
func SelectorForDeployment(deployment string) string {
	return KeyDeployment + "=" + deployment
}

// SelectorForResource returns a label selector string for all cloud resources
// realizing one descriptor, such as the member servers of an instance set.
func SelectorForResource(deployment, id string) string {
	return SelectorForDeployment(deployment) + "," + KeyResource + "=" + id
}
