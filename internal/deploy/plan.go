package deploy

import (
	"slices"
)

// Plan is the tiered execution order for a descriptor set. Descriptors in
// the same tier have no dependency relationship and may be realized
// concurrently; tier n+1 never starts before tier n has completed.
type Plan struct {
	Tiers [][]Descriptor
}

// Size returns the total number of descriptors in the plan.
func (p *Plan) Size() int {
	n := 0
	for _, tier := range p.Tiers {
		n += len(tier)
	}
	return n
}

// Descriptors returns all descriptors flattened in tier order.
func (p *Plan) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, p.Size())
	for _, tier := range p.Tiers {
		out = append(out, tier...)
	}
	return out
}

// BuildPlan orders descriptors into concurrency tiers so that every
// descriptor appears in a strictly later tier than all of its dependencies.
// The result is deterministic: descriptors within a tier are sorted by id.
//
// BuildPlan validates the set before ordering: duplicate ids, references to
// undeclared ids, and dependency cycles are rejected with typed errors.
// Planning never touches provider state.
func BuildPlan(descriptors []Descriptor) (*Plan, error) {
	byID := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := byID[d.ID]; dup {
			return nil, &DuplicateIDError{ID: d.ID}
		}
		byID[d.ID] = d
	}

	// Indegree counts dependencies; dependents maps each id to the ids
	// that wait on it.
	indegree := make(map[string]int, len(descriptors))
	dependents := make(map[string][]string, len(descriptors))
	for _, d := range descriptors {
		indegree[d.ID] += 0
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{From: d.ID, To: dep}
			}
			indegree[d.ID]++
			dependents[dep] = append(dependents[dep], d.ID)
		}
	}

	var tiers [][]Descriptor
	placed := 0

	ready := make([]string, 0, len(descriptors))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		slices.Sort(ready)

		tier := make([]Descriptor, 0, len(ready))
		var next []string
		for _, id := range ready {
			tier = append(tier, byID[id])
			placed++
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}

		tiers = append(tiers, tier)
		ready = next
	}

	if placed < len(descriptors) {
		return nil, &CycleError{IDs: findCycle(byID, indegree)}
	}

	return &Plan{Tiers: tiers}, nil
}

// findCycle extracts one concrete cycle from the descriptors left with a
// positive indegree after tier construction.
func findCycle(byID map[string]Descriptor, indegree map[string]int) []string {
	remaining := make(map[string]bool)
	for id, deg := range indegree {
		if deg > 0 {
			remaining[id] = true
		}
	}

	var start string
	for id := range remaining {
		if start == "" || id < start {
			start = id
		}
	}

	// Walk dependency edges within the remaining subgraph until an id
	// repeats; the walk cannot escape because every remaining node keeps
	// at least one remaining dependency.
	seen := make(map[string]int)
	var path []string
	current := start
	for {
		if at, ok := seen[current]; ok {
			return append(path[at:], current)
		}
		seen[current] = len(path)
		path = append(path, current)

		deps := slices.Clone(byID[current].DependsOn)
		slices.Sort(deps)
		for _, dep := range deps {
			if remaining[dep] {
				current = dep
				break
			}
		}
	}
}
