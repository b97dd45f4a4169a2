package hcloud

import (
	"context"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/health"
)

// serviceCheckTimeout bounds a single health check attempt performed by the
// load balancer itself.
const serviceCheckTimeout = 5 * time.Second

// LoadBalancerSpec holds all parameters for realizing one load balancer.
type LoadBalancerSpec struct {
	Name      string
	Type      string
	Location  string
	Algorithm string
	Labels    map[string]string
	Network   *hcloud.Network
}

// EnsureLoadBalancer ensures that a load balancer with the spec's name
// exists. An existing one is adopted as-is.
func (c *RealClient) EnsureLoadBalancer(ctx context.Context, spec LoadBalancerSpec) (*hcloud.LoadBalancer, error) {
	lbType, _, err := c.client.LoadBalancerType.Get(ctx, spec.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get load balancer type: %w", err)
	}
	if lbType == nil {
		return nil, fmt.Errorf("load balancer type not found: %s", spec.Type)
	}

	location, err := c.resolveLocation(ctx, spec.Location)
	if err != nil {
		return nil, err
	}

	algorithm, err := parseAlgorithm(spec.Algorithm)
	if err != nil {
		return nil, err
	}

	return (&EnsureOperation[*hcloud.LoadBalancer, hcloud.LoadBalancerCreateOpts, any]{
		Name:         spec.Name,
		ResourceType: "load balancer",
		Get:          c.client.LoadBalancer.Get,
		Create:       c.createLoadBalancer,
		CreateOptsMapper: func() hcloud.LoadBalancerCreateOpts {
			return hcloud.LoadBalancerCreateOpts{
				Name:             spec.Name,
				LoadBalancerType: lbType,
				Location:         location,
				Algorithm:        &hcloud.LoadBalancerAlgorithm{Type: algorithm},
				Labels:           spec.Labels,
				Network:          spec.Network,
			}
		},
	}).Execute(ctx, c)
}

// createLoadBalancer wraps load balancer creation into a CreateResult.
func (c *RealClient) createLoadBalancer(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*CreateResult[*hcloud.LoadBalancer], *hcloud.Response, error) {
	result, resp, err := c.client.LoadBalancer.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.LoadBalancer]{
		Resource: result.LoadBalancer,
		Action:   result.Action,
	}, resp, nil
}

func parseAlgorithm(algorithm string) (hcloud.LoadBalancerAlgorithmType, error) {
	switch algorithm {
	case "", "round_robin":
		return hcloud.LoadBalancerAlgorithmTypeRoundRobin, nil
	case "least_connections":
		return hcloud.LoadBalancerAlgorithmTypeLeastConnections, nil
	default:
		return "", fmt.Errorf("unsupported load balancer algorithm %q", algorithm)
	}
}

// ServiceSpec describes one listener on a load balancer.
type ServiceSpec struct {
	Protocol        string
	ListenPort      int
	DestinationPort int
	// Check configures the health check the load balancer runs against
	// its targets for this service.
	Check health.CheckSpec
}

// HasService reports whether the load balancer already listens on the port.
func HasService(lb *hcloud.LoadBalancer, listenPort int) bool {
	for _, svc := range lb.Services {
		if svc.ListenPort == listenPort {
			return true
		}
	}
	return false
}

// EnsureService adds a service to the load balancer unless one already
// listens on the spec's port.
func (c *RealClient) EnsureService(ctx context.Context, lb *hcloud.LoadBalancer, spec ServiceSpec) error {
	if HasService(lb, spec.ListenPort) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Create)
	defer cancel()

	opts, err := buildServiceOpts(spec)
	if err != nil {
		return err
	}

	action, _, err := c.client.LoadBalancer.AddService(ctx, lb, opts)
	if err != nil {
		return fmt.Errorf("failed to add load balancer service: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for load balancer service: %w", err)
	}
	return nil
}

func buildServiceOpts(spec ServiceSpec) (hcloud.LoadBalancerAddServiceOpts, error) {
	protocol, err := serviceProtocol(spec.Protocol)
	if err != nil {
		return hcloud.LoadBalancerAddServiceOpts{}, err
	}
	checkProtocol, err := serviceProtocol(spec.Check.Probe.Protocol)
	if err != nil {
		return hcloud.LoadBalancerAddServiceOpts{}, err
	}

	destinationPort := spec.DestinationPort
	if destinationPort == 0 {
		destinationPort = spec.ListenPort
	}

	opts := hcloud.LoadBalancerAddServiceOpts{
		Protocol:        protocol,
		ListenPort:      hcloud.Ptr(spec.ListenPort),
		DestinationPort: hcloud.Ptr(destinationPort),
		HealthCheck: &hcloud.LoadBalancerAddServiceOptsHealthCheck{
			Protocol: checkProtocol,
			Port:     hcloud.Ptr(spec.Check.Probe.Port),
			Interval: hcloud.Ptr(spec.Check.Interval),
			Timeout:  hcloud.Ptr(serviceCheckTimeout),
			Retries:  hcloud.Ptr(spec.Check.Threshold),
		},
	}
	if checkProtocol == hcloud.LoadBalancerServiceProtocolHTTP {
		path := spec.Check.Probe.Path
		if path == "" {
			path = "/"
		}
		opts.HealthCheck.HTTP = &hcloud.LoadBalancerAddServiceOptsHealthCheckHTTP{
			Path:        hcloud.Ptr(path),
			StatusCodes: []string{"2??", "3??"},
		}
	}
	return opts, nil
}

func serviceProtocol(protocol string) (hcloud.LoadBalancerServiceProtocol, error) {
	switch protocol {
	case "", deploy.ProtocolTCP:
		return hcloud.LoadBalancerServiceProtocolTCP, nil
	case deploy.ProtocolHTTP:
		return hcloud.LoadBalancerServiceProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported service protocol %q", protocol)
	}
}

// DeleteService removes the service listening on the given port. Removing an
// absent service succeeds.
func (c *RealClient) DeleteService(ctx context.Context, lb *hcloud.LoadBalancer, listenPort int) error {
	if !HasService(lb, listenPort) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	action, _, err := c.client.LoadBalancer.DeleteService(ctx, lb, listenPort)
	if err != nil {
		return fmt.Errorf("failed to delete load balancer service: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for load balancer service removal: %w", err)
	}
	return nil
}

// HasServerTarget reports whether the server is already a target of the
// load balancer.
func HasServerTarget(lb *hcloud.LoadBalancer, serverID int64) bool {
	for _, target := range lb.Targets {
		if target.Type != hcloud.LoadBalancerTargetTypeServer {
			continue
		}
		if target.Server != nil && target.Server.Server != nil && target.Server.Server.ID == serverID {
			return true
		}
	}
	return false
}

// AddServerTarget registers the server as a target of the load balancer.
// Registering an existing target succeeds. The private IP is used whenever
// the load balancer is attached to a private network.
func (c *RealClient) AddServerTarget(ctx context.Context, lb *hcloud.LoadBalancer, server *hcloud.Server) error {
	if HasServerTarget(lb, server.ID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Create)
	defer cancel()

	opts := hcloud.LoadBalancerAddServerTargetOpts{
		Server:       server,
		UsePrivateIP: hcloud.Ptr(len(lb.PrivateNet) > 0),
	}
	action, _, err := c.client.LoadBalancer.AddServerTarget(ctx, lb, opts)
	if err != nil {
		return fmt.Errorf("failed to add server target: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for server target: %w", err)
	}
	return nil
}

// AttachLoadBalancerToNetwork attaches the load balancer to the network if it
// is not already attached.
func (c *RealClient) AttachLoadBalancerToNetwork(ctx context.Context, lb *hcloud.LoadBalancer, network *hcloud.Network) error {
	for _, privateNet := range lb.PrivateNet {
		if privateNet.Network != nil && privateNet.Network.ID == network.ID {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Create)
	defer cancel()

	action, _, err := c.client.LoadBalancer.AttachToNetwork(ctx, lb, hcloud.LoadBalancerAttachToNetworkOpts{
		Network: network,
	})
	if err != nil {
		return fmt.Errorf("failed to attach load balancer to network: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for load balancer network attachment: %w", err)
	}
	return nil
}

// DeleteLoadBalancer deletes the load balancer with the given name.
func (c *RealClient) DeleteLoadBalancer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.LoadBalancer]{
		Name:         name,
		ResourceType: "load balancer",
		Get:          c.client.LoadBalancer.Get,
		Delete:       c.client.LoadBalancer.Delete,
	}).Execute(ctx, c)
}

// GetLoadBalancer returns the load balancer with the given name, or nil if
// absent.
func (c *RealClient) GetLoadBalancer(ctx context.Context, name string) (*hcloud.LoadBalancer, error) {
	lb, _, err := c.client.LoadBalancer.Get(ctx, name)
	return lb, err
}

// GetLoadBalancerByID returns the load balancer with the given id, or nil if
// absent.
func (c *RealClient) GetLoadBalancerByID(ctx context.Context, id int64) (*hcloud.LoadBalancer, error) {
	lb, _, err := c.client.LoadBalancer.GetByID(ctx, id)
	return lb, err
}
