// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"fmt"
)

// Registry is the fixed set of connectors available to the orchestrator.
type Registry struct {
	order    []string
	byName   map[string]Connector
	defaults []string
}

// NewRegistry builds a registry in the given order. Names must be unique.
func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{byName: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		name := c.Name()
		if name == "" {
			return nil, fmt.Errorf("connector has empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate connector %q", name)
		}
		r.byName[name] = c
		r.order = append(r.order, name)
	}
	return r, nil
}

// WithDefaults sets the connectors used when a query has no allowlist.
// Names not in the registry are an error.
func (r *Registry) WithDefaults(names []string) (*Registry, error) {
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("default database %q is not registered", n)
		}
	}
	r.defaults = append([]string(nil), names...)
	return r, nil
}

// Names returns all registered names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int { return len(r.order) }

// Get returns the named connector.
func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Select returns the connectors named in allowlist, in registry order.
// Unknown names are ignored. An empty allowlist selects the defaults, or
// every connector when no defaults are set.
func (r *Registry) Select(allowlist []string) []Connector {
	want := allowlist
	if len(want) == 0 {
		want = r.defaults
	}
	if len(want) == 0 {
		return r.All()
	}
	set := make(map[string]bool, len(want))
	for _, n := range want {
		set[n] = true
	}
	var out []Connector
	for _, n := range r.order {
		if set[n] {
			out = append(out, r.byName[n])
		}
	}
	return out
}

// All returns every connector in registry order.
func (r *Registry) All() []Connector {
	out := make([]Connector, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}
