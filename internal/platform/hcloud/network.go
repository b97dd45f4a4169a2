package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureNetwork ensures that a network exists with the given IP range.
func (c *RealClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	return (&EnsureOperation[*hcloud.Network, hcloud.NetworkCreateOpts, any]{
		Name:         name,
		ResourceType: "network",
		Get:          c.client.Network.Get,
		Create:       simpleCreate(c.client.Network.Create),
		Validate: func(network *hcloud.Network) error {
			if network.IPRange.String() != ipRange {
				return fmt.Errorf("network %s exists but with different IP range %s (expected %s)",
					name, network.IPRange.String(), ipRange)
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.NetworkCreateOpts {
			_, ipNet, _ := net.ParseCIDR(ipRange)
			return hcloud.NetworkCreateOpts{
				Name:    name,
				IPRange: ipNet,
				Labels:  labels,
			}
		},
	}).Execute(ctx, c)
}

// HasSubnet reports whether the network already carries a subnet with the
// given IP range.
func HasSubnet(network *hcloud.Network, ipRange string) bool {
	for _, subnet := range network.Subnets {
		if subnet.IPRange.String() == ipRange {
			return true
		}
	}
	return false
}

// EnsureSubnet ensures that a subnet with the given IP range exists in the
// network.
func (c *RealClient) EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error {
	if HasSubnet(network, ipRange) {
		return nil
	}

	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return fmt.Errorf("invalid subnet ip range: %w", err)
	}

	opts := hcloud.NetworkAddSubnetOpts{
		Subnet: hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     ipNet,
			NetworkZone: hcloud.NetworkZone(networkZone),
		},
	}

	action, _, err := c.client.Network.AddSubnet(ctx, network, opts)
	if err != nil {
		return fmt.Errorf("failed to add subnet: %w", err)
	}

	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return fmt.Errorf("failed to wait for subnet creation: %w", err)
	}

	return nil
}

// DeleteSubnet removes the subnet with the given IP range from the network.
// A subnet that is already gone counts as success.
func (c *RealClient) DeleteSubnet(ctx context.Context, network *hcloud.Network, ipRange string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	var subnet *hcloud.NetworkSubnet
	for i := range network.Subnets {
		if network.Subnets[i].IPRange.String() == ipRange {
			subnet = &network.Subnets[i]
			break
		}
	}
	if subnet == nil {
		return nil
	}

	action, _, err := c.client.Network.DeleteSubnet(ctx, network, hcloud.NetworkDeleteSubnetOpts{
		Subnet: *subnet,
	})
	if err != nil {
		return fmt.Errorf("failed to delete subnet: %w", err)
	}

	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return fmt.Errorf("failed to wait for subnet deletion: %w", err)
	}

	return nil
}

// DeleteNetwork deletes the network with the given name.
func (c *RealClient) DeleteNetwork(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Network]{
		Name:         name,
		ResourceType: "network",
		Get:          c.client.Network.Get,
		Delete:       c.client.Network.Delete,
	}).Execute(ctx, c)
}

// GetNetwork returns the network with the given name, or nil if absent.
func (c *RealClient) GetNetwork(ctx context.Context, name string) (*hcloud.Network, error) {
	network, _, err := c.client.Network.Get(ctx, name)
	return network, err
}

// GetNetworkByID returns the network with the given id, or nil if absent.
func (c *RealClient) GetNetworkByID(ctx context.Context, id int64) (*hcloud.Network, error) {
	network, _, err := c.client.Network.GetByID(ctx, id)
	return network, err
}

// networkZoneForLocation maps a Hetzner location to its network zone.
func networkZoneForLocation(location string) string {
	switch location {
	case "ash":
		return "us-east"
	case "hil":
		return "us-west"
	case "sin":
		return "ap-southeast"
	default:
		return "eu-central"
	}
}
