package hcloud

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/health"
	"github.com/imamik/stackzner/internal/platform/objstore"
	"github.com/imamik/stackzner/internal/util/labels"
	"github.com/imamik/stackzner/internal/util/naming"
)

// Defaults applied when neither descriptor nor configuration name a value.
const (
	DefaultServerType       = "cx23"
	DefaultImage            = "debian-12"
	DefaultLoadBalancerType = "lb11"

	defaultNetworkCIDR = "10.0.0.0/16"
)

// AdapterConfig carries the deployment-scoped settings the adapter needs to
// name, label, and size the resources it realizes.
type AdapterConfig struct {
	// Deployment prefixes every cloud resource name.
	Deployment string
	// Location is the Hetzner location resources are created in.
	Location string
	// AdminKey is the public key uploaded as the deployment's SSH key.
	// Empty means servers are created without one.
	AdminKey string
	// ServerType and Image are the defaults for instances that name none.
	ServerType string
	Image      string
	// ScaleMin and ScaleMax clamp instance set sizes.
	ScaleMin int
	ScaleMax int
}

// Adapter realizes deployment descriptors on Hetzner Cloud. It implements
// deploy.Provider; one adapter serves one run of one deployment.
//
// The adapter keeps a registry of realized handles per descriptor id.
// Descriptors that reference others (a subnet naming its network, an lb-rule
// naming its load balancer) resolve through the registry first and fall back
// to a name-based lookup where the name is derivable. Processing descriptors
// in dependency order keeps the registry complete.
type Adapter struct {
	client *RealClient
	store  objectStore
	prober *Prober
	cfg    AdapterConfig

	mu            sync.Mutex
	handles       map[string]deploy.Handle
	checks        map[string]health.CheckSpec
	adminKeyReady bool
}

var _ deploy.Provider = (*Adapter)(nil)

// NewAdapter creates an adapter for one deployment. The store may be nil
// when object storage credentials are absent; storage descriptors then fail
// with a permanent error.
func NewAdapter(client *RealClient, store *objstore.Client, cfg AdapterConfig) *Adapter {
	if cfg.ServerType == "" {
		cfg.ServerType = DefaultServerType
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.ScaleMin < 1 {
		cfg.ScaleMin = 1
	}
	if cfg.ScaleMax < cfg.ScaleMin {
		cfg.ScaleMax = cfg.ScaleMin
	}
	a := &Adapter{
		client:  client,
		prober:  NewProber(),
		cfg:     cfg,
		handles: make(map[string]deploy.Handle),
		checks:  make(map[string]health.CheckSpec),
	}
	if store != nil {
		a.store = store
	}
	return a
}

// Exists reports whether the resource declared by desc is already realized.
func (a *Adapter) Exists(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, bool, error) {
	handle, ok, err := a.exists(ctx, desc)
	if err != nil {
		return "", false, Classify(desc.ID, err)
	}
	if ok {
		a.remember(desc.ID, handle)
	}
	return handle, ok, nil
}

// Create realizes the resource declared by desc and returns its handle.
// Creation is idempotent: partially realized resources are completed.
func (a *Adapter) Create(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, error) {
	handle, err := a.create(ctx, desc)
	if err != nil {
		return "", Classify(desc.ID, err)
	}
	a.remember(desc.ID, handle)
	return handle, nil
}

// Delete removes the realized resource behind the handle. Deleting an
// absent resource succeeds.
func (a *Adapter) Delete(ctx context.Context, handle deploy.Handle) error {
	parts, err := parseHandle(handle)
	if err != nil {
		return deploy.Permanent(err)
	}
	if err := a.delete(ctx, parts); err != nil {
		return Classify(parts.DescriptorID, err)
	}
	a.forget(parts.DescriptorID)
	return nil
}

// Probe performs one health check attempt against the endpoint.
func (a *Adapter) Probe(ctx context.Context, ep deploy.Endpoint, spec deploy.ProbeSpec) error {
	return a.prober.Probe(ctx, ep.Address, spec)
}

// AddToPool registers the endpoint's server as a load balancer target.
func (a *Adapter) AddToPool(ctx context.Context, pool deploy.Handle, ep deploy.Endpoint) error {
	poolParts, err := parseHandle(pool)
	if err != nil {
		return deploy.Permanent(err)
	}
	if poolParts.Kind != deploy.KindLoadBalancer {
		return deploy.Permanent(fmt.Errorf("pool handle %q is a %s, want %s", pool, poolParts.Kind, deploy.KindLoadBalancer))
	}
	lbID, err := poolParts.numericID()
	if err != nil {
		return deploy.Permanent(err)
	}

	lb, err := a.client.GetLoadBalancerByID(ctx, lbID)
	if err != nil {
		return Classify(poolParts.DescriptorID, err)
	}
	if lb == nil {
		return deploy.Permanent(fmt.Errorf("load balancer %s is gone", poolParts.DescriptorID))
	}

	server, err := a.endpointServer(ctx, ep)
	if err != nil {
		return err
	}

	if err := a.client.AddServerTarget(ctx, lb, server); err != nil {
		return Classify(ep.InstanceID, err)
	}
	return nil
}

// Endpoints enumerates the probeable endpoints behind an instance handle.
func (a *Adapter) Endpoints(ctx context.Context, handle deploy.Handle) ([]deploy.Endpoint, error) {
	parts, err := parseHandle(handle)
	if err != nil {
		return nil, deploy.Permanent(err)
	}

	switch parts.Kind {
	case deploy.KindComputeInstance:
		id, err := parts.numericID()
		if err != nil {
			return nil, deploy.Permanent(err)
		}
		server, err := a.client.GetServerByID(ctx, id)
		if err != nil {
			return nil, Classify(parts.DescriptorID, err)
		}
		if server == nil {
			return nil, deploy.Permanent(fmt.Errorf("instance %s is gone", parts.DescriptorID))
		}
		return []deploy.Endpoint{{
			InstanceID: parts.DescriptorID,
			Address:    ServerAddress(server),
			Handle:     handle,
		}}, nil

	case deploy.KindInstanceSet:
		servers, err := a.client.ServersByLabel(ctx, labels.SelectorForResource(a.cfg.Deployment, parts.DescriptorID))
		if err != nil {
			return nil, Classify(parts.DescriptorID, err)
		}
		endpoints := make([]deploy.Endpoint, 0, len(servers))
		for _, server := range servers {
			endpoints = append(endpoints, deploy.Endpoint{
				InstanceID: server.Name,
				Address:    ServerAddress(server),
				Handle:     handle,
			})
		}
		return endpoints, nil

	default:
		return nil, deploy.Permanent(fmt.Errorf("resource kind %s exposes no endpoints", parts.Kind))
	}
}

// endpointServer resolves the server backing an endpoint. Set endpoints
// carry the member server name as their instance id.
func (a *Adapter) endpointServer(ctx context.Context, ep deploy.Endpoint) (*hcloud.Server, error) {
	parts, err := parseHandle(ep.Handle)
	if err != nil {
		return nil, deploy.Permanent(err)
	}

	switch parts.Kind {
	case deploy.KindComputeInstance:
		id, err := parts.numericID()
		if err != nil {
			return nil, deploy.Permanent(err)
		}
		server, err := a.client.GetServerByID(ctx, id)
		if err != nil {
			return nil, Classify(ep.InstanceID, err)
		}
		if server == nil {
			return nil, deploy.Permanent(fmt.Errorf("server behind endpoint %s is gone", ep.InstanceID))
		}
		return server, nil

	case deploy.KindInstanceSet:
		server, err := a.client.GetServer(ctx, ep.InstanceID)
		if err != nil {
			return nil, Classify(ep.InstanceID, err)
		}
		if server == nil {
			return nil, deploy.Permanent(fmt.Errorf("server %s is gone", ep.InstanceID))
		}
		return server, nil

	default:
		return nil, deploy.Permanent(fmt.Errorf("endpoint handle %q is a %s, want an instance", ep.Handle, parts.Kind))
	}
}

func (a *Adapter) exists(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, bool, error) {
	name := naming.Resource(a.cfg.Deployment, desc.ID)

	switch desc.Kind {
	case deploy.KindNetwork:
		network, err := a.client.GetNetwork(ctx, name)
		if err != nil || network == nil {
			return "", false, err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(network.ID, 10)), true, nil

	case deploy.KindSubnet:
		network, err := a.resolveNetworkRef(ctx, desc.ConfigValue("network"))
		if err != nil || network == nil {
			return "", false, err
		}
		cidr := desc.ConfigValue("cidr")
		if cidr == "" || !HasSubnet(network, cidr) {
			return "", false, nil
		}
		return subnetHandle(desc.ID, network.ID, cidr), true, nil

	case deploy.KindSecurityGroup:
		fw, err := a.client.GetFirewall(ctx, name)
		if err != nil || fw == nil {
			return "", false, err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(fw.ID, 10)), true, nil

	case deploy.KindSecurityRule:
		fw, err := a.resolveFirewallRef(ctx, desc.ConfigValue("group"))
		if err != nil || fw == nil {
			return "", false, err
		}
		key, err := ruleKeyFromConfig(desc)
		if err != nil {
			return "", false, err
		}
		if !HasRule(fw, key) {
			return "", false, nil
		}
		return ruleHandle(desc.ID, fw.ID, key), true, nil

	case deploy.KindStorageAccount, deploy.KindBlobContainer, deploy.KindBlob:
		return a.storageExists(ctx, desc)

	case deploy.KindComputeInstance:
		server, err := a.client.GetServer(ctx, name)
		if err != nil || server == nil {
			return "", false, err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(server.ID, 10)), true, nil

	case deploy.KindInstanceSet:
		return a.instanceSetExists(ctx, desc, name)

	case deploy.KindLoadBalancer:
		lb, err := a.client.GetLoadBalancer(ctx, name)
		if err != nil || lb == nil {
			return "", false, err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(lb.ID, 10)), true, nil

	case deploy.KindHealthProbe:
		// Probe definitions are recomputed every run.
		return "", false, nil

	case deploy.KindLBRule:
		lb, err := a.resolveLoadBalancerRef(ctx, desc.ConfigValue("load_balancer"))
		if err != nil || lb == nil {
			return "", false, err
		}
		listenPort, err := rulePort(desc)
		if err != nil {
			return "", false, err
		}
		if !HasService(lb, listenPort) {
			return "", false, nil
		}
		return serviceHandle(desc.ID, lb.ID, listenPort), true, nil

	default:
		return "", false, deploy.Permanent(fmt.Errorf("unsupported resource kind %q", desc.Kind))
	}
}

func (a *Adapter) create(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, error) {
	name := naming.Resource(a.cfg.Deployment, desc.ID)
	resourceLabels := a.resourceLabels(desc)

	switch desc.Kind {
	case deploy.KindNetwork:
		cidr := desc.ConfigValue("cidr")
		if cidr == "" {
			cidr = defaultNetworkCIDR
		}
		network, err := a.client.EnsureNetwork(ctx, name, cidr, resourceLabels)
		if err != nil {
			return "", err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(network.ID, 10)), nil

	case deploy.KindSubnet:
		network, err := a.requireNetworkRef(ctx, desc, "network")
		if err != nil {
			return "", err
		}
		cidr := desc.ConfigValue("cidr")
		if cidr == "" {
			return "", missingConfig(desc, "cidr")
		}
		zone := networkZoneForLocation(a.cfg.Location)
		if err := a.client.EnsureSubnet(ctx, network, cidr, zone); err != nil {
			return "", err
		}
		return subnetHandle(desc.ID, network.ID, cidr), nil

	case deploy.KindSecurityGroup:
		fw, err := a.client.EnsureFirewall(ctx, name, resourceLabels, labels.SelectorForDeployment(a.cfg.Deployment))
		if err != nil {
			return "", err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(fw.ID, 10)), nil

	case deploy.KindSecurityRule:
		fw, err := a.requireFirewallRef(ctx, desc, "group")
		if err != nil {
			return "", err
		}
		key, err := ruleKeyFromConfig(desc)
		if err != nil {
			return "", err
		}
		rule, err := buildFirewallRule(key, desc.ID, desc.ConfigValue("source"), desc.ConfigValue("destination"))
		if err != nil {
			return "", deploy.Permanent(fmt.Errorf("security rule %s: %w", desc.ID, err))
		}
		if err := a.client.ApplyRule(ctx, fw, rule, key); err != nil {
			return "", err
		}
		return ruleHandle(desc.ID, fw.ID, key), nil

	case deploy.KindStorageAccount, deploy.KindBlobContainer, deploy.KindBlob:
		return a.storageCreate(ctx, desc)

	case deploy.KindComputeInstance:
		server, err := a.createInstance(ctx, desc, name, resourceLabels, nil)
		if err != nil {
			return "", err
		}
		return newHandle(desc.Kind, desc.ID, strconv.FormatInt(server.ID, 10)), nil

	case deploy.KindInstanceSet:
		return a.createInstanceSet(ctx, desc, name, resourceLabels)

	case deploy.KindLoadBalancer:
		return a.createPool(ctx, desc, name, resourceLabels)

	case deploy.KindHealthProbe:
		check, err := health.ParseCheck(desc, health.DefaultCheck())
		if err != nil {
			return "", deploy.Permanent(fmt.Errorf("probe %s: %w", desc.ID, err))
		}
		a.rememberCheck(desc.ID, check)
		return newHandle(desc.Kind, desc.ID, "definition"), nil

	case deploy.KindLBRule:
		return a.createService(ctx, desc)

	default:
		return "", deploy.Permanent(fmt.Errorf("unsupported resource kind %q", desc.Kind))
	}
}

func (a *Adapter) delete(ctx context.Context, parts handleParts) error {
	name := naming.Resource(a.cfg.Deployment, parts.DescriptorID)

	switch parts.Kind {
	case deploy.KindNetwork:
		return a.client.DeleteNetwork(ctx, name)

	case deploy.KindSubnet:
		netID, cidr, err := parts.splitNumericID()
		if err != nil {
			return deploy.Permanent(err)
		}
		network, err := a.client.GetNetworkByID(ctx, netID)
		if err != nil {
			return err
		}
		if network == nil {
			return nil
		}
		return a.client.DeleteSubnet(ctx, network, cidr)

	case deploy.KindSecurityGroup:
		return a.client.DeleteFirewall(ctx, name)

	case deploy.KindSecurityRule:
		fwID, keyStr, err := parts.splitNumericID()
		if err != nil {
			return deploy.Permanent(err)
		}
		fw, err := a.client.GetFirewallByID(ctx, fwID)
		if err != nil {
			return err
		}
		if fw == nil {
			return nil
		}
		key, err := parseRuleKey(keyStr)
		if err != nil {
			return deploy.Permanent(err)
		}
		return a.client.RemoveRule(ctx, fw, key)

	case deploy.KindStorageAccount, deploy.KindBlobContainer, deploy.KindBlob:
		return a.storageDelete(ctx, parts)

	case deploy.KindComputeInstance:
		return a.client.DeleteServer(ctx, name)

	case deploy.KindInstanceSet:
		return a.deleteInstanceSet(ctx, parts.DescriptorID, name)

	case deploy.KindLoadBalancer:
		return a.client.DeleteLoadBalancer(ctx, name)

	case deploy.KindHealthProbe:
		return nil

	case deploy.KindLBRule:
		lbID, portStr, err := parts.splitNumericID()
		if err != nil {
			return deploy.Permanent(err)
		}
		lb, err := a.client.GetLoadBalancerByID(ctx, lbID)
		if err != nil {
			return err
		}
		if lb == nil {
			return nil
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return deploy.Permanent(fmt.Errorf("handle for %s has non-numeric listen port %q", parts.DescriptorID, portStr))
		}
		return a.client.DeleteService(ctx, lb, port)

	default:
		return deploy.Permanent(fmt.Errorf("unsupported resource kind %q", parts.Kind))
	}
}

// instanceSetExists reports a set as realized only when its placement group
// exists and the member count matches the desired count. Anything else lets
// Create reconcile the set.
func (a *Adapter) instanceSetExists(ctx context.Context, desc deploy.Descriptor, name string) (deploy.Handle, bool, error) {
	pg, err := a.client.GetPlacementGroup(ctx, name)
	if err != nil || pg == nil {
		return "", false, err
	}

	count, err := a.desiredCount(desc)
	if err != nil {
		return "", false, err
	}
	servers, err := a.client.ServersByLabel(ctx, labels.SelectorForResource(a.cfg.Deployment, desc.ID))
	if err != nil {
		return "", false, err
	}
	if len(servers) != count {
		return "", false, nil
	}
	return newHandle(desc.Kind, desc.ID, strconv.FormatInt(pg.ID, 10)), true, nil
}

// createInstance ensures one server for an instance or set member descriptor.
func (a *Adapter) createInstance(ctx context.Context, desc deploy.Descriptor, name string, serverLabels map[string]string, pg *hcloud.PlacementGroup) (*hcloud.Server, error) {
	networkRef := desc.ConfigValue("network")
	network, err := a.resolveNetworkRef(ctx, networkRef)
	if err != nil {
		return nil, err
	}
	if networkRef != "" && network == nil {
		return nil, unrealizedRef(desc, "network", networkRef)
	}

	sshKeys, err := a.ensureAdminKey(ctx)
	if err != nil {
		return nil, err
	}

	serverType := desc.ConfigValue("server_type")
	if serverType == "" {
		serverType = a.cfg.ServerType
	}
	image := desc.ConfigValue("image")
	if image == "" {
		image = a.cfg.Image
	}

	return a.client.EnsureServer(ctx, ServerSpec{
		Name:           name,
		ServerType:     serverType,
		Image:          image,
		Location:       a.cfg.Location,
		SSHKeys:        sshKeys,
		Labels:         serverLabels,
		UserData:       desc.ConfigValue("user_data"),
		PlacementGroup: pg,
		Network:        network,
	})
}

// createInstanceSet reconciles a set to its desired size: a spread placement
// group plus one member server per index. Members are ensured in order, so a
// partially created set completes on retry; surplus members are trimmed.
func (a *Adapter) createInstanceSet(ctx context.Context, desc deploy.Descriptor, name string, resourceLabels map[string]string) (deploy.Handle, error) {
	count, err := a.desiredCount(desc)
	if err != nil {
		return "", err
	}

	pg, err := a.client.EnsurePlacementGroup(ctx, name, resourceLabels)
	if err != nil {
		return "", err
	}

	for i := 1; i <= count; i++ {
		memberName := naming.Member(a.cfg.Deployment, desc.ID, i)
		if _, err := a.createInstance(ctx, desc, memberName, resourceLabels, pg); err != nil {
			return "", fmt.Errorf("member %s: %w", memberName, err)
		}
	}

	if err := a.trimInstanceSet(ctx, desc.ID, count); err != nil {
		return "", err
	}

	return newHandle(desc.Kind, desc.ID, strconv.FormatInt(pg.ID, 10)), nil
}

// trimInstanceSet removes members above the desired count.
func (a *Adapter) trimInstanceSet(ctx context.Context, setID string, count int) error {
	servers, err := a.client.ServersByLabel(ctx, labels.SelectorForResource(a.cfg.Deployment, setID))
	if err != nil {
		return err
	}
	for _, server := range servers {
		index, ok := memberIndex(server.Name)
		if !ok || index <= count {
			continue
		}
		if err := a.client.DeleteServer(ctx, server.Name); err != nil {
			return fmt.Errorf("trim member %s: %w", server.Name, err)
		}
	}
	return nil
}

func (a *Adapter) deleteInstanceSet(ctx context.Context, setID, name string) error {
	servers, err := a.client.ServersByLabel(ctx, labels.SelectorForResource(a.cfg.Deployment, setID))
	if err != nil {
		return err
	}
	for _, server := range servers {
		if err := a.client.DeleteServer(ctx, server.Name); err != nil {
			return fmt.Errorf("member %s: %w", server.Name, err)
		}
	}
	return a.client.DeletePlacementGroup(ctx, name)
}

// createPool realizes a load-balancer descriptor and attaches it to its
// network when one is referenced.
func (a *Adapter) createPool(ctx context.Context, desc deploy.Descriptor, name string, resourceLabels map[string]string) (deploy.Handle, error) {
	networkRef := desc.ConfigValue("network")
	network, err := a.resolveNetworkRef(ctx, networkRef)
	if err != nil {
		return "", err
	}
	if networkRef != "" && network == nil {
		return "", unrealizedRef(desc, "network", networkRef)
	}

	if _, err := parseAlgorithm(desc.ConfigValue("algorithm")); err != nil {
		return "", deploy.Permanent(fmt.Errorf("load balancer %s: %w", desc.ID, err))
	}

	lbType := desc.ConfigValue("type")
	if lbType == "" {
		lbType = DefaultLoadBalancerType
	}

	lb, err := a.client.EnsureLoadBalancer(ctx, LoadBalancerSpec{
		Name:      name,
		Type:      lbType,
		Location:  a.cfg.Location,
		Algorithm: desc.ConfigValue("algorithm"),
		Labels:    resourceLabels,
		Network:   network,
	})
	if err != nil {
		return "", err
	}
	if network != nil {
		if err := a.client.AttachLoadBalancerToNetwork(ctx, lb, network); err != nil {
			return "", err
		}
	}
	return newHandle(desc.Kind, desc.ID, strconv.FormatInt(lb.ID, 10)), nil
}

// createService realizes an lb-rule descriptor as a load balancer service.
func (a *Adapter) createService(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, error) {
	lb, err := a.requireLoadBalancerRef(ctx, desc, "load_balancer")
	if err != nil {
		return "", err
	}
	listenPort, err := rulePort(desc)
	if err != nil {
		return "", err
	}

	destinationPort := listenPort
	if v := desc.ConfigValue("destination_port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return "", deploy.Permanent(fmt.Errorf("lb rule %s: invalid destination_port %q", desc.ID, v))
		}
		destinationPort = port
	}

	if _, err := serviceProtocol(desc.ConfigValue("protocol")); err != nil {
		return "", deploy.Permanent(fmt.Errorf("lb rule %s: %w", desc.ID, err))
	}

	check := health.DefaultCheck()
	if probeID := desc.ConfigValue("probe"); probeID != "" {
		stored, ok := a.checkFor(probeID)
		if !ok {
			return "", deploy.Permanent(fmt.Errorf("lb rule %s: probe %q is not realized", desc.ID, probeID))
		}
		check = stored
	}

	if err := a.client.EnsureService(ctx, lb, ServiceSpec{
		Protocol:        desc.ConfigValue("protocol"),
		ListenPort:      listenPort,
		DestinationPort: destinationPort,
		Check:           check,
	}); err != nil {
		return "", err
	}
	return serviceHandle(desc.ID, lb.ID, listenPort), nil
}

// ensureAdminKey uploads the deployment's SSH key once and returns the key
// names for server creation. A missing admin key disables SSH access.
func (a *Adapter) ensureAdminKey(ctx context.Context) ([]string, error) {
	if a.cfg.AdminKey == "" {
		return nil, nil
	}
	name := naming.AdminKey(a.cfg.Deployment)

	a.mu.Lock()
	ready := a.adminKeyReady
	a.mu.Unlock()
	if ready {
		return []string{name}, nil
	}

	keyLabels := labels.NewLabelBuilder(a.cfg.Deployment).Build()
	if _, err := a.client.EnsureSSHKey(ctx, name, a.cfg.AdminKey, keyLabels); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.adminKeyReady = true
	a.mu.Unlock()
	return []string{name}, nil
}

// resolveNetworkRef resolves a descriptor reference to a realized network.
// An empty reference or an unrealized target yields nil without error.
func (a *Adapter) resolveNetworkRef(ctx context.Context, ref string) (*hcloud.Network, error) {
	if ref == "" {
		return nil, nil
	}
	if h, ok := a.handleFor(ref); ok {
		if parts, err := parseHandle(h); err == nil && parts.Kind == deploy.KindNetwork {
			id, err := parts.numericID()
			if err != nil {
				return nil, deploy.Permanent(err)
			}
			return a.client.GetNetworkByID(ctx, id)
		}
	}
	return a.client.GetNetwork(ctx, naming.Resource(a.cfg.Deployment, ref))
}

func (a *Adapter) resolveFirewallRef(ctx context.Context, ref string) (*hcloud.Firewall, error) {
	if ref == "" {
		return nil, nil
	}
	if h, ok := a.handleFor(ref); ok {
		if parts, err := parseHandle(h); err == nil && parts.Kind == deploy.KindSecurityGroup {
			id, err := parts.numericID()
			if err != nil {
				return nil, deploy.Permanent(err)
			}
			return a.client.GetFirewallByID(ctx, id)
		}
	}
	return a.client.GetFirewall(ctx, naming.Resource(a.cfg.Deployment, ref))
}

func (a *Adapter) resolveLoadBalancerRef(ctx context.Context, ref string) (*hcloud.LoadBalancer, error) {
	if ref == "" {
		return nil, nil
	}
	if h, ok := a.handleFor(ref); ok {
		if parts, err := parseHandle(h); err == nil && parts.Kind == deploy.KindLoadBalancer {
			id, err := parts.numericID()
			if err != nil {
				return nil, deploy.Permanent(err)
			}
			return a.client.GetLoadBalancerByID(ctx, id)
		}
	}
	return a.client.GetLoadBalancer(ctx, naming.Resource(a.cfg.Deployment, ref))
}

func (a *Adapter) requireNetworkRef(ctx context.Context, desc deploy.Descriptor, key string) (*hcloud.Network, error) {
	ref := desc.ConfigValue(key)
	if ref == "" {
		return nil, missingConfig(desc, key)
	}
	network, err := a.resolveNetworkRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, unrealizedRef(desc, key, ref)
	}
	return network, nil
}

func (a *Adapter) requireFirewallRef(ctx context.Context, desc deploy.Descriptor, key string) (*hcloud.Firewall, error) {
	ref := desc.ConfigValue(key)
	if ref == "" {
		return nil, missingConfig(desc, key)
	}
	fw, err := a.resolveFirewallRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if fw == nil {
		return nil, unrealizedRef(desc, key, ref)
	}
	return fw, nil
}

func (a *Adapter) requireLoadBalancerRef(ctx context.Context, desc deploy.Descriptor, key string) (*hcloud.LoadBalancer, error) {
	ref := desc.ConfigValue(key)
	if ref == "" {
		return nil, missingConfig(desc, key)
	}
	lb, err := a.resolveLoadBalancerRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, unrealizedRef(desc, key, ref)
	}
	return lb, nil
}

// desiredCount returns the member count for an instance set, clamped to the
// configured scale bounds. An unset count means the minimum.
func (a *Adapter) desiredCount(desc deploy.Descriptor) (int, error) {
	count := a.cfg.ScaleMin
	if v := desc.ConfigValue("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, deploy.Permanent(fmt.Errorf("instance set %s: invalid count %q", desc.ID, v))
		}
		count = n
	}
	if count < a.cfg.ScaleMin {
		count = a.cfg.ScaleMin
	}
	if count > a.cfg.ScaleMax {
		count = a.cfg.ScaleMax
	}
	return count, nil
}

func (a *Adapter) resourceLabels(desc deploy.Descriptor) map[string]string {
	return labels.NewLabelBuilder(a.cfg.Deployment).
		WithResource(desc.ID).
		WithKind(string(desc.Kind)).
		Build()
}

func (a *Adapter) remember(id string, h deploy.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handles[id] = h
}

func (a *Adapter) forget(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handles, id)
	delete(a.checks, id)
}

func (a *Adapter) handleFor(id string) (deploy.Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[id]
	return h, ok
}

func (a *Adapter) rememberCheck(id string, check health.CheckSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks[id] = check
}

func (a *Adapter) checkFor(id string) (health.CheckSpec, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	check, ok := a.checks[id]
	return check, ok
}

// ruleKeyFromConfig derives the rule identity from a security-rule
// descriptor. Direction defaults to in, protocol to tcp; ICMP rules carry
// no port.
func ruleKeyFromConfig(desc deploy.Descriptor) (RuleKey, error) {
	direction := desc.ConfigValue("direction")
	if direction == "" {
		direction = "in"
	}
	switch direction {
	case "in", "out":
	default:
		return RuleKey{}, deploy.Permanent(fmt.Errorf("security rule %s: invalid direction %q", desc.ID, direction))
	}

	protocol := desc.ConfigValue("protocol")
	if protocol == "" {
		protocol = "tcp"
	}
	switch protocol {
	case "tcp", "udp", "icmp":
	default:
		return RuleKey{}, deploy.Permanent(fmt.Errorf("security rule %s: unsupported protocol %q", desc.ID, protocol))
	}

	port := desc.ConfigValue("port")
	if protocol == "icmp" {
		port = ""
	} else if port == "" {
		return RuleKey{}, missingConfig(desc, "port")
	}

	return RuleKey{Direction: direction, Protocol: protocol, Port: port}, nil
}

// rulePort parses the required listen port of an lb-rule descriptor.
func rulePort(desc deploy.Descriptor) (int, error) {
	v := desc.ConfigValue("port")
	if v == "" {
		return 0, missingConfig(desc, "port")
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 1 || port > 65535 {
		return 0, deploy.Permanent(fmt.Errorf("%s %s: invalid port %q", desc.Kind, desc.ID, v))
	}
	return port, nil
}

// memberIndex extracts the 1-based member index from a set member name.
func memberIndex(name string) (int, bool) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func missingConfig(desc deploy.Descriptor, key string) error {
	return deploy.Permanent(fmt.Errorf("%s %s: missing required config %q", desc.Kind, desc.ID, key))
}

func unrealizedRef(desc deploy.Descriptor, key, ref string) error {
	return deploy.Permanent(fmt.Errorf("%s %s: %s %q is not realized", desc.Kind, desc.ID, key, ref))
}
