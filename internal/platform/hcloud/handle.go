package hcloud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imamik/stackzner/internal/deploy"
)

// Handles produced by this adapter encode three parts:
//
//	<kind>/<descriptor id>/<provider id>
//
// The provider id part is kind-specific and may itself contain slashes
// (subnet ids embed a CIDR). Callers outside this package treat the whole
// string as opaque; Delete, AddToPool, and Endpoints parse it back.
type handleParts struct {
	Kind         deploy.Kind
	DescriptorID string
	ProviderID   string
}

// newHandle encodes the three handle parts.
func newHandle(kind deploy.Kind, descriptorID, providerID string) deploy.Handle {
	return deploy.Handle(fmt.Sprintf("%s/%s/%s", kind, descriptorID, providerID))
}

// parseHandle decodes a handle produced by newHandle.
func parseHandle(h deploy.Handle) (handleParts, error) {
	fields := strings.SplitN(string(h), "/", 3)
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return handleParts{}, fmt.Errorf("malformed handle %q", h)
	}

	kind := deploy.Kind(fields[0])
	if !kind.Valid() {
		return handleParts{}, fmt.Errorf("handle %q has unknown kind %q", h, fields[0])
	}

	return handleParts{
		Kind:         kind,
		DescriptorID: fields[1],
		ProviderID:   fields[2],
	}, nil
}

// numericID parses the provider id part as an hcloud numeric id.
func (p handleParts) numericID() (int64, error) {
	id, err := strconv.ParseInt(p.ProviderID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("handle for %s has non-numeric provider id %q", p.DescriptorID, p.ProviderID)
	}
	return id, nil
}

// splitProviderID splits a composite provider id on the first colon.
// Subnets encode "<network id>:<cidr>", lb-rules "<lb id>:<listen port>",
// blobs "<bucket>:<key>".
func (p handleParts) splitProviderID() (string, string, error) {
	head, rest, ok := strings.Cut(p.ProviderID, ":")
	if !ok || head == "" || rest == "" {
		return "", "", fmt.Errorf("handle for %s has malformed provider id %q", p.DescriptorID, p.ProviderID)
	}
	return head, rest, nil
}

// splitNumericID splits a composite provider id and parses its head as an
// hcloud numeric id.
func (p handleParts) splitNumericID() (int64, string, error) {
	head, rest, err := p.splitProviderID()
	if err != nil {
		return 0, "", err
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("handle for %s has non-numeric provider id %q", p.DescriptorID, p.ProviderID)
	}
	return id, rest, nil
}

func subnetHandle(id string, networkID int64, cidr string) deploy.Handle {
	return newHandle(deploy.KindSubnet, id, fmt.Sprintf("%d:%s", networkID, cidr))
}

func ruleHandle(id string, firewallID int64, key RuleKey) deploy.Handle {
	return newHandle(deploy.KindSecurityRule, id, fmt.Sprintf("%d:%s", firewallID, key))
}

func serviceHandle(id string, loadBalancerID int64, listenPort int) deploy.Handle {
	return newHandle(deploy.KindLBRule, id, fmt.Sprintf("%d:%d", loadBalancerID, listenPort))
}

func containerHandle(id, bucket string) deploy.Handle {
	return newHandle(deploy.KindBlobContainer, id, fmt.Sprintf("%s:%s", bucket, id))
}

func blobHandle(id, bucket, key string) deploy.Handle {
	return newHandle(deploy.KindBlob, id, fmt.Sprintf("%s:%s", bucket, key))
}
