// Package fakes provides in-memory stand-ins for the provider and content
// store so the deployment core can be exercised without a cloud account.
package fakes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/imamik/stackzner/internal/deploy"
)

// FakeProvider simulates a cloud provider. Outcomes of Create, Delete, Probe,
// and AddToPool calls can be scripted per resource; unscripted calls succeed.
// Handles take the form "h-<descriptor id>".
type FakeProvider struct {
	mu sync.Mutex

	existing     map[string]deploy.Handle
	existsErrs   map[string]error
	createErrs   map[string][]error
	deleteErrs   map[deploy.Handle][]error
	probeErrs    map[string][]error
	poolErrs     map[deploy.Handle][]error
	endpoints    map[deploy.Handle][]deploy.Endpoint
	endpointErrs map[deploy.Handle]error

	// CreateOrder lists descriptor ids in the order their creation succeeded.
	CreateOrder []string
	// CreateCalls counts Create attempts per descriptor id, retries included.
	CreateCalls map[string]int
	// DeleteOrder lists handles in the order their deletion succeeded.
	DeleteOrder []string
	// DeleteCalls counts Delete attempts per handle, retries included.
	DeleteCalls map[deploy.Handle]int
	// ProbeCalls counts Probe attempts per endpoint address.
	ProbeCalls map[string]int
	// Pools holds registered endpoints per pool handle, deduplicated by
	// address the way a real pool would be.
	Pools map[deploy.Handle][]deploy.Endpoint
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		existing:     make(map[string]deploy.Handle),
		existsErrs:   make(map[string]error),
		createErrs:   make(map[string][]error),
		deleteErrs:   make(map[deploy.Handle][]error),
		probeErrs:    make(map[string][]error),
		poolErrs:     make(map[deploy.Handle][]error),
		endpoints:    make(map[deploy.Handle][]deploy.Endpoint),
		endpointErrs: make(map[deploy.Handle]error),
		CreateCalls:  make(map[string]int),
		DeleteCalls:  make(map[deploy.Handle]int),
		ProbeCalls:   make(map[string]int),
		Pools:        make(map[deploy.Handle][]deploy.Endpoint),
	}
}

// HandleFor returns the handle the fake assigns to a descriptor id.
func HandleFor(id string) deploy.Handle {
	return deploy.Handle("h-" + id)
}

// WithExisting pre-seeds a realized resource so Exists reports it.
func (f *FakeProvider) WithExisting(ids ...string) *FakeProvider {
	for _, id := range ids {
		f.existing[id] = HandleFor(id)
	}
	return f
}

// WithExistsError makes the existence check fail for a descriptor id.
func (f *FakeProvider) WithExistsError(id string, err error) *FakeProvider {
	f.existsErrs[id] = err
	return f
}

// WithCreateErrors scripts the outcomes of successive Create calls for a
// descriptor id. A nil entry means that attempt succeeds. Once the script is
// exhausted further attempts succeed.
func (f *FakeProvider) WithCreateErrors(id string, errs ...error) *FakeProvider {
	f.createErrs[id] = append(f.createErrs[id], errs...)
	return f
}

// WithDeleteErrors scripts the outcomes of successive Delete calls for a
// handle, in the same pop-front fashion as WithCreateErrors.
func (f *FakeProvider) WithDeleteErrors(handle deploy.Handle, errs ...error) *FakeProvider {
	f.deleteErrs[handle] = append(f.deleteErrs[handle], errs...)
	return f
}

// WithProbeErrors scripts the outcomes of successive Probe calls for an
// endpoint address. Exhausted scripts probe healthy.
func (f *FakeProvider) WithProbeErrors(address string, errs ...error) *FakeProvider {
	f.probeErrs[address] = append(f.probeErrs[address], errs...)
	return f
}

// WithPoolErrors scripts the outcomes of successive AddToPool calls for a
// pool handle.
func (f *FakeProvider) WithPoolErrors(handle deploy.Handle, errs ...error) *FakeProvider {
	f.poolErrs[handle] = append(f.poolErrs[handle], errs...)
	return f
}

// WithEndpoints fixes the endpoints enumerated for a handle. Without this,
// Endpoints derives a single "<id>.internal" endpoint from the handle.
func (f *FakeProvider) WithEndpoints(handle deploy.Handle, eps ...deploy.Endpoint) *FakeProvider {
	f.endpoints[handle] = eps
	return f
}

// WithEndpointsError makes endpoint enumeration fail for a handle.
func (f *FakeProvider) WithEndpointsError(handle deploy.Handle, err error) *FakeProvider {
	f.endpointErrs[handle] = err
	return f
}

// Realized returns the descriptor ids the provider currently holds resources
// for, sorted.
func (f *FakeProvider) Realized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.existing))
	for id := range f.existing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *FakeProvider) Exists(_ context.Context, desc deploy.Descriptor) (deploy.Handle, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.existsErrs[desc.ID]; err != nil {
		return "", false, err
	}
	if h, ok := f.existing[desc.ID]; ok {
		return h, true, nil
	}
	return "", false, nil
}

func (f *FakeProvider) Create(_ context.Context, desc deploy.Descriptor) (deploy.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls[desc.ID]++
	if errs := f.createErrs[desc.ID]; len(errs) > 0 {
		err := errs[0]
		f.createErrs[desc.ID] = errs[1:]
		if err != nil {
			return "", err
		}
	}

	h := HandleFor(desc.ID)
	f.existing[desc.ID] = h
	f.CreateOrder = append(f.CreateOrder, desc.ID)
	return h, nil
}

func (f *FakeProvider) Delete(_ context.Context, handle deploy.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls[handle]++
	if errs := f.deleteErrs[handle]; len(errs) > 0 {
		err := errs[0]
		f.deleteErrs[handle] = errs[1:]
		if err != nil {
			return err
		}
	}

	for id, h := range f.existing {
		if h == handle {
			delete(f.existing, id)
		}
	}
	f.DeleteOrder = append(f.DeleteOrder, string(handle))
	return nil
}

func (f *FakeProvider) Probe(_ context.Context, ep deploy.Endpoint, _ deploy.ProbeSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ProbeCalls[ep.Address]++
	if errs := f.probeErrs[ep.Address]; len(errs) > 0 {
		err := errs[0]
		f.probeErrs[ep.Address] = errs[1:]
		return err
	}
	return nil
}

func (f *FakeProvider) AddToPool(_ context.Context, pool deploy.Handle, ep deploy.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if errs := f.poolErrs[pool]; len(errs) > 0 {
		err := errs[0]
		f.poolErrs[pool] = errs[1:]
		if err != nil {
			return err
		}
	}

	for _, member := range f.Pools[pool] {
		if member.Address == ep.Address {
			return nil
		}
	}
	f.Pools[pool] = append(f.Pools[pool], ep)
	return nil
}

func (f *FakeProvider) Endpoints(_ context.Context, handle deploy.Handle) ([]deploy.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.endpointErrs[handle]; err != nil {
		return nil, err
	}
	if eps, ok := f.endpoints[handle]; ok {
		return eps, nil
	}
	id := strings.TrimPrefix(string(handle), "h-")
	return []deploy.Endpoint{{InstanceID: id, Address: id + ".internal", Handle: handle}}, nil
}
