package doubao

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps node names to nodes and display labels. It replaces the host's
// process-wide class and display-name tables: build it once at startup, Seal it,
// then hand it by reference to whatever integrates with the host.
// Read methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	labels map[string]string
	order  []string
	sealed bool
}

// NewRegistry returns an empty, unsealed Registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:  make(map[string]Node),
		labels: make(map[string]string),
	}
}

// Register adds node under node.Spec().Name with the given display label.
// An empty label falls back to NodeSpec.DisplayName, then to the name.
func (r *Registry) Register(node Node, displayName string) error {
	spec, err := specOf(node)
	if err != nil {
		return err
	}
	if spec.Name == "" {
		return &ValidationError{Field: "name", Reason: "node spec has empty name"}
	}
	if displayName == "" {
		displayName = spec.DisplayName
	}
	if displayName == "" {
		displayName = spec.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, spec.Name)
	}
	if _, ok := r.nodes[spec.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, spec.Name)
	}
	r.nodes[spec.Name] = node
	r.labels[spec.Name] = displayName
	r.order = append(r.order, spec.Name)
	return nil
}

// Seal makes the registry read-only. Safe to call multiple times.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the node registered under name.
func (r *Registry) Lookup(name string) (Node, error) {
	r.mu.RLock()
	n, ok := r.nodes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	return n, nil
}

// DisplayName returns the display label registered for name.
func (r *Registry) DisplayName(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.labels[name]
	return l, ok
}

// Names returns node names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Specs returns every node's spec in registration order.
func (r *Registry) Specs() []NodeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.nodes[name].Spec())
	}
	return out
}

// ClassMappings returns a copy of the name -> node table.
func (r *Registry) ClassMappings() map[string]Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.nodes)
}

// DisplayNameMappings returns a copy of the name -> display label table.
func (r *Registry) DisplayNameMappings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.labels)
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// specOf returns node.Spec(), reporting a nil node (including a typed nil
// pointer whose Spec panics) as a ValidationError.
func specOf(node Node) (spec NodeSpec, err error) {
	if node == nil {
		return NodeSpec{}, &ValidationError{Field: "node", Reason: "nil node"}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ValidationError{Field: "node", Reason: fmt.Sprintf("nil node: %v", r)}
		}
	}()
	return node.Spec(), nil
}
