package hcloud

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureFirewall ensures that a firewall exists, applied to all servers
// matching the given label selector. Rules are managed separately through
// ApplyRule and RemoveRule.
func (c *RealClient) EnsureFirewall(ctx context.Context, name string, labels map[string]string, applyToSelector string) (*hcloud.Firewall, error) {
	return (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, any]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Create:       c.createFirewall,
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:   name,
				Labels: labels,
				ApplyTo: []hcloud.FirewallResource{{
					Type: hcloud.FirewallResourceTypeLabelSelector,
					LabelSelector: &hcloud.FirewallResourceLabelSelector{
						Selector: applyToSelector,
					},
				}},
			}
		},
	}).Execute(ctx, c)
}

func (c *RealClient) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// RuleKey identifies one firewall rule within its firewall.
// Port is the hcloud port spec, a single port or an inclusive range
// like "9000-9099".
type RuleKey struct {
	Direction string
	Protocol  string
	Port      string
}

// String renders the key in the form embedded into rule handles.
func (k RuleKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Direction, k.Protocol, k.Port)
}

// parseRuleKey parses the colon-separated form produced by String.
func parseRuleKey(s string) (RuleKey, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return RuleKey{}, fmt.Errorf("malformed rule key %q", s)
	}
	return RuleKey{Direction: fields[0], Protocol: fields[1], Port: fields[2]}, nil
}

// matchesRule reports whether an existing firewall rule carries the key.
func matchesRule(rule hcloud.FirewallRule, key RuleKey) bool {
	if string(rule.Direction) != key.Direction || string(rule.Protocol) != key.Protocol {
		return false
	}
	// ICMP rules carry no port.
	if rule.Port == nil {
		return key.Port == ""
	}
	return *rule.Port == key.Port
}

// HasRule reports whether the firewall already carries a rule with the key.
func HasRule(fw *hcloud.Firewall, key RuleKey) bool {
	for _, rule := range fw.Rules {
		if matchesRule(rule, key) {
			return true
		}
	}
	return false
}

// ApplyRule merges one rule into the firewall's rule set, keeping all
// existing rules. Applying a rule that is already present succeeds.
func (c *RealClient) ApplyRule(ctx context.Context, fw *hcloud.Firewall, rule hcloud.FirewallRule, key RuleKey) error {
	if HasRule(fw, key) {
		return nil
	}

	rules := append(append([]hcloud.FirewallRule{}, fw.Rules...), rule)
	return c.setRules(ctx, fw, rules)
}

// RemoveRule merges one rule out of the firewall's rule set, keeping all
// other rules. Removing an absent rule succeeds.
func (c *RealClient) RemoveRule(ctx context.Context, fw *hcloud.Firewall, key RuleKey) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	kept := make([]hcloud.FirewallRule, 0, len(fw.Rules))
	removed := false
	for _, rule := range fw.Rules {
		if matchesRule(rule, key) {
			removed = true
			continue
		}
		kept = append(kept, rule)
	}
	if !removed {
		return nil
	}

	return c.setRules(ctx, fw, kept)
}

func (c *RealClient) setRules(ctx context.Context, fw *hcloud.Firewall, rules []hcloud.FirewallRule) error {
	actions, _, err := c.client.Firewall.SetRules(ctx, fw, hcloud.FirewallSetRulesOpts{Rules: rules})
	if err != nil {
		return fmt.Errorf("failed to set firewall rules: %w", err)
	}
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		return fmt.Errorf("failed to wait for firewall rules update: %w", err)
	}
	return nil
}

// DeleteFirewall deletes the firewall with the given name.
func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Delete:       c.client.Firewall.Delete,
	}).Execute(ctx, c)
}

// GetFirewall returns the firewall with the given name, or nil if absent.
func (c *RealClient) GetFirewall(ctx context.Context, name string) (*hcloud.Firewall, error) {
	fw, _, err := c.client.Firewall.Get(ctx, name)
	return fw, err
}

// GetFirewallByID returns the firewall with the given id, or nil if absent.
func (c *RealClient) GetFirewallByID(ctx context.Context, id int64) (*hcloud.Firewall, error) {
	fw, _, err := c.client.Firewall.GetByID(ctx, id)
	return fw, err
}

// buildFirewallRule constructs an hcloud rule from descriptor configuration.
// Source and destination CIDRs are comma-separated; invalid CIDRs fail.
func buildFirewallRule(key RuleKey, description, sourceCIDRs, destinationCIDRs string) (hcloud.FirewallRule, error) {
	rule := hcloud.FirewallRule{
		Direction: hcloud.FirewallRuleDirection(key.Direction),
		Protocol:  hcloud.FirewallRuleProtocol(key.Protocol),
	}
	if description != "" {
		rule.Description = hcloud.Ptr(description)
	}
	if key.Port != "" {
		rule.Port = hcloud.Ptr(key.Port)
	}

	sources, err := parseCIDRList(sourceCIDRs)
	if err != nil {
		return hcloud.FirewallRule{}, fmt.Errorf("invalid source: %w", err)
	}
	destinations, err := parseCIDRList(destinationCIDRs)
	if err != nil {
		return hcloud.FirewallRule{}, fmt.Errorf("invalid destination: %w", err)
	}

	switch rule.Direction {
	case hcloud.FirewallRuleDirectionIn:
		if len(sources) == 0 {
			sources = anyAddress()
		}
		rule.SourceIPs = sources
	case hcloud.FirewallRuleDirectionOut:
		if len(destinations) == 0 {
			destinations = anyAddress()
		}
		rule.DestinationIPs = destinations
	default:
		return hcloud.FirewallRule{}, fmt.Errorf("invalid direction %q", key.Direction)
	}

	return rule, nil
}

func parseCIDRList(s string) ([]net.IPNet, error) {
	if s == "" {
		return nil, nil
	}
	var nets []net.IPNet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		_, ipNet, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("CIDR %q: %w", part, err)
		}
		nets = append(nets, *ipNet)
	}
	return nets, nil
}

// anyAddress is the dual-stack wildcard used when a rule names no CIDRs.
func anyAddress() []net.IPNet {
	_, v4, _ := net.ParseCIDR("0.0.0.0/0")
	_, v6, _ := net.ParseCIDR("::/0")
	return []net.IPNet{*v4, *v6}
}
