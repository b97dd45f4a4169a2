package deploy

// Kind identifies the type of cloud resource a descriptor declares.
type Kind string

// Resource kinds understood by the planner and the provider adapters.
const (
	KindNetwork         Kind = "network"
	KindSubnet          Kind = "subnet"
	KindSecurityGroup   Kind = "security-group"
	KindSecurityRule    Kind = "security-rule"
	KindStorageAccount  Kind = "storage-account"
	KindBlobContainer   Kind = "blob-container"
	KindBlob            Kind = "blob"
	KindComputeInstance Kind = "compute-instance"
	KindInstanceSet     Kind = "instance-set"
	KindLoadBalancer    Kind = "load-balancer"
	KindHealthProbe     Kind = "health-probe"
	KindLBRule          Kind = "lb-rule"
)

var knownKinds = map[Kind]bool{
	KindNetwork:         true,
	KindSubnet:          true,
	KindSecurityGroup:   true,
	KindSecurityRule:    true,
	KindStorageAccount:  true,
	KindBlobContainer:   true,
	KindBlob:            true,
	KindComputeInstance: true,
	KindInstanceSet:     true,
	KindLoadBalancer:    true,
	KindHealthProbe:     true,
	KindLBRule:          true,
}

// Valid reports whether k is a known resource kind.
func (k Kind) Valid() bool {
	return knownKinds[k]
}

// Descriptor declares one resource of a deployment: its unique id, its kind,
// kind-specific configuration, and the ids of resources it depends on.
//
// Descriptors are value types and are never mutated after load. Grant
// substitution and similar transformations produce copies via WithConfig.
type Descriptor struct {
	ID        string
	Kind      Kind
	Config    map[string]string
	DependsOn []string
}

// ConfigValue returns the configuration value for key, or "" if unset.
func (d Descriptor) ConfigValue(key string) string {
	return d.Config[key]
}

// WithConfig returns a copy of the descriptor carrying the given
// configuration map. The original descriptor is left untouched.
func (d Descriptor) WithConfig(config map[string]string) Descriptor {
	copied := make(map[string]string, len(config))
	for k, v := range config {
		copied[k] = v
	}
	d.Config = copied
	return d
}
