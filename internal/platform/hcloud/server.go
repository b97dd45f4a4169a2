package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerSpec holds all parameters for realizing one server.
type ServerSpec struct {
	Name           string
	ServerType     string
	Image          string
	Location       string
	SSHKeys        []string
	Labels         map[string]string
	UserData       string
	PlacementGroup *hcloud.PlacementGroup
	Network        *hcloud.Network
}

// EnsureServer ensures that a server with the spec's name exists. An
// existing server is adopted as-is; a new one is created and awaited.
func (c *RealClient) EnsureServer(ctx context.Context, spec ServerSpec) (*hcloud.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Create)
	defer cancel()

	server, _, err := c.client.Server.Get(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server != nil {
		return server, nil
	}

	opts, err := c.buildServerCreateOpts(ctx, spec)
	if err != nil {
		return nil, err
	}

	result, _, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		return nil, fmt.Errorf("failed to wait for server creation: %w", err)
	}

	return result.Server, nil
}

// buildServerCreateOpts resolves all referenced resources and builds server
// creation options.
func (c *RealClient) buildServerCreateOpts(ctx context.Context, spec ServerSpec) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, spec.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", spec.ServerType)
	}

	image, err := c.resolveImage(ctx, spec.Image, serverType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	sshKeys, err := c.resolveSSHKeys(ctx, spec.SSHKeys)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	location, err := c.resolveLocation(ctx, spec.Location)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	opts := hcloud.ServerCreateOpts{
		Name:           spec.Name,
		ServerType:     serverType,
		Image:          image,
		SSHKeys:        sshKeys,
		Labels:         spec.Labels,
		UserData:       spec.UserData,
		Location:       location,
		PlacementGroup: spec.PlacementGroup,
	}
	if spec.Network != nil {
		opts.Networks = []*hcloud.Network{spec.Network}
	}

	return opts, nil
}

// resolveImage resolves an image by name, falling back to an
// architecture-matched lookup when the named image targets a different
// architecture than the server type.
func (c *RealClient) resolveImage(ctx context.Context, name string, serverType *hcloud.ServerType) (*hcloud.Image, error) {
	image, _, err := c.client.Image.Get(ctx, name) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, fmt.Errorf("image not found: %s", name)
	}

	if image.Architecture != serverType.Architecture {
		images, _, err := c.client.Image.List(ctx, hcloud.ImageListOpts{
			Name:         name,
			Architecture: []hcloud.Architecture{serverType.Architecture},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("image %s not available for architecture %s", name, serverType.Architecture)
		}
		image = images[0]
	}

	return image, nil
}

// resolveSSHKeys resolves SSH key names to SSH key objects.
func (c *RealClient) resolveSSHKeys(ctx context.Context, names []string) ([]*hcloud.SSHKey, error) {
	var keys []*hcloud.SSHKey
	for _, name := range names {
		key, _, err := c.client.SSHKey.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", name, err)
		}
		if key == nil {
			return nil, fmt.Errorf("ssh key not found: %s", name)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// resolveLocation resolves a location name to a location object.
func (c *RealClient) resolveLocation(ctx context.Context, location string) (*hcloud.Location, error) {
	if location == "" {
		return nil, nil
	}

	loc, _, err := c.client.Location.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", location, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location not found: %s", location)
	}
	return loc, nil
}

// DeleteServer deletes the server with the given name.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			_, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			return resp, err
		},
	}).Execute(ctx, c)
}

// GetServer returns the server with the given name, or nil if absent.
func (c *RealClient) GetServer(ctx context.Context, name string) (*hcloud.Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	return server, err
}

// GetServerByID returns the server with the given id, or nil if absent.
func (c *RealClient) GetServerByID(ctx context.Context, id int64) (*hcloud.Server, error) {
	server, _, err := c.client.Server.GetByID(ctx, id)
	return server, err
}

// ServersByLabel returns all servers matching the given label selector,
// sorted by name for deterministic member enumeration.
func (c *RealClient) ServersByLabel(ctx context.Context, selector string) ([]*hcloud.Server, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
		Sort:     []string{"name:asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// ServerAddress picks the address probes and pool registration reach the
// server on: public IPv4, then public IPv6, then the first private IP.
func ServerAddress(s *hcloud.Server) string {
	if s == nil {
		return ""
	}
	if s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	if s.PublicNet.IPv6.IP != nil {
		return s.PublicNet.IPv6.IP.String()
	}
	if len(s.PrivateNet) > 0 && s.PrivateNet[0].IP != nil {
		return s.PrivateNet[0].IP.String()
	}
	return ""
}
