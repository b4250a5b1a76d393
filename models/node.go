package models

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Reserved identity property keys. Every landscape node carries exactly
// these four properties on its identity; everything else lives on the
// attached state nodes.
const (
	NameProp     = "name"
	LayerProp    = "layer"
	CategoryProp = "category"
	TypeProp     = "type"
)

// IdentityProps lists the reserved identity keys. State attributes that
// clash with one of these are renamed before being merged into a node.
var IdentityProps = []string{NameProp, LayerProp, CategoryProp, TypeProp}

// Landscape layers.
const (
	LayerPhysical = "physical"
	LayerVirtual  = "virtual"
	LayerService  = "service"
)

// Identity is the immutable part of a landscape node. The node id itself
// (the "name" property) is carried separately, since identities are reused
// as templates by the collectors.
//
// Example:
//
//	Identity{Layer: "virtual", Category: "compute", Type: "vm"}
type Identity struct {
	// Layer is the landscape layer (physical, virtual, service)
	Layer string `json:"layer"`

	// Category is the broad grouping (compute, network, storage) and
	// doubles as the database label for the identity node
	Category string `json:"category"`

	// Type is the concrete component type (machine, cache, vm, volume, ...)
	Type string `json:"type"`
}

// Properties returns the identity as a property map, with the node id
// filled in under the reserved name key.
func (i Identity) Properties(id string) map[string]any {
	category := i.Category
	if category == "" {
		category = "UNDEFINED"
	}
	return map[string]any{
		NameProp:     id,
		LayerProp:    i.Layer,
		CategoryProp: category,
		TypeProp:     i.Type,
	}
}

// State holds the mutable attributes of a landscape node at a point in
// time. A node's history is the chain of its expired states.
type State map[string]any

// Clone returns a shallow copy of the state. Collectors reuse attribute
// templates, so states are cloned before being filled in.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether both states hold the same keys and values. Used to
// skip no-op updates so that identical states do not pile up in the store.
// Values are compared through their JSON form, so numbers are equal across
// Go types: an int written by a collector matches the int64 the store
// hands back.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	a, errA := json.Marshal(map[string]any(s))
	b, errB := json.Marshal(map[string]any(other))
	if errA != nil || errB != nil {
		return reflect.DeepEqual(map[string]any(s), map[string]any(other))
	}
	return bytes.Equal(a, b)
}
