package health

import (
	"fmt"
	"strconv"
	"time"

	"github.com/imamik/stackzner/internal/deploy"
)

// Resolve derives pool bindings from realized descriptors. Instances and
// instance sets opt in with a "pool" config key naming a load-balancer
// descriptor; an optional "probe" key names a health-probe descriptor whose
// config refines the default check. Descriptors the run did not realize are
// skipped.
func Resolve(descriptors []deploy.Descriptor, result *deploy.Result, defaults CheckSpec) ([]Binding, error) {
	byID := make(map[string]deploy.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}

	var bindings []Binding
	for _, desc := range descriptors {
		if desc.Kind != deploy.KindComputeInstance && desc.Kind != deploy.KindInstanceSet {
			continue
		}
		poolID := desc.ConfigValue("pool")
		if poolID == "" {
			continue
		}

		pool, ok := byID[poolID]
		if !ok {
			return nil, fmt.Errorf("instance %s: pool %q is not a known descriptor", desc.ID, poolID)
		}
		if pool.Kind != deploy.KindLoadBalancer {
			return nil, fmt.Errorf("instance %s: pool %q is a %s, want %s", desc.ID, poolID, pool.Kind, deploy.KindLoadBalancer)
		}

		instState := result.State(desc.ID)
		if instState == nil || instState.Status != deploy.StatusCreated {
			continue
		}
		poolState := result.State(poolID)
		if poolState == nil || poolState.Status != deploy.StatusCreated {
			return nil, fmt.Errorf("instance %s: pool %s was not realized", desc.ID, poolID)
		}

		check := defaults
		if probeID := desc.ConfigValue("probe"); probeID != "" {
			probe, ok := byID[probeID]
			if !ok {
				return nil, fmt.Errorf("instance %s: probe %q is not a known descriptor", desc.ID, probeID)
			}
			if probe.Kind != deploy.KindHealthProbe {
				return nil, fmt.Errorf("instance %s: probe %q is a %s, want %s", desc.ID, probeID, probe.Kind, deploy.KindHealthProbe)
			}
			parsed, err := ParseCheck(probe, defaults)
			if err != nil {
				return nil, fmt.Errorf("probe %s: %w", probeID, err)
			}
			check = parsed
		}

		bindings = append(bindings, Binding{
			InstanceID: desc.ID,
			Instance:   instState.Handle,
			PoolID:     poolID,
			Pool:       poolState.Handle,
			Check:      check,
		})
	}

	return bindings, nil
}

// ParseCheck overlays the config of a health-probe descriptor on top of base.
// Recognized keys: protocol, port, path, interval, threshold, window.
func ParseCheck(desc deploy.Descriptor, base CheckSpec) (CheckSpec, error) {
	check := base

	if v := desc.ConfigValue("protocol"); v != "" {
		switch v {
		case deploy.ProtocolTCP, deploy.ProtocolHTTP:
			check.Probe.Protocol = v
		default:
			return CheckSpec{}, fmt.Errorf("unsupported probe protocol %q", v)
		}
	}
	if v := desc.ConfigValue("port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return CheckSpec{}, fmt.Errorf("invalid probe port %q", v)
		}
		check.Probe.Port = port
	}
	if v := desc.ConfigValue("path"); v != "" {
		check.Probe.Path = v
	}
	if v := desc.ConfigValue("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return CheckSpec{}, fmt.Errorf("invalid probe interval %q", v)
		}
		check.Interval = d
	}
	if v := desc.ConfigValue("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return CheckSpec{}, fmt.Errorf("invalid probe threshold %q", v)
		}
		check.Threshold = n
	}
	if v := desc.ConfigValue("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return CheckSpec{}, fmt.Errorf("invalid probe window %q", v)
		}
		check.Window = d
	}

	return check, nil
}
