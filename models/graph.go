package models

import (
	"fmt"
	"sort"
)

// Graph is a node-link document describing a slice of the landscape. It is
// the wire format of every graph-returning endpoint: nodes carry their
// merged identity and state attributes keyed by "id", links reference node
// ids and keep the validity interval of the underlying relationship.
type Graph struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Meta       map[string]any `json:"graph"`
	Nodes      []GraphNode    `json:"nodes"`
	Links      []GraphLink    `json:"links"`

	index map[string]int
}

// GraphNode is a flat attribute map. The node id is stored under "id".
type GraphNode map[string]any

// ID returns the node id or the empty string.
func (n GraphNode) ID() string {
	id, _ := n["id"].(string)
	return id
}

// Type returns the node type or the empty string.
func (n GraphNode) Type() string {
	t, _ := n[TypeProp].(string)
	return t
}

// GraphLink is a directed edge between two nodes in a Graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	From   int64  `json:"from,omitempty"`
	To     int64  `json:"to,omitempty"`
}

// NewGraph returns an empty directed graph document.
func NewGraph() *Graph {
	return &Graph{
		Directed: true,
		Meta:     map[string]any{},
		Nodes:    []GraphNode{},
		Links:    []GraphLink{},
		index:    map[string]int{},
	}
}

// AddNode adds a node with the given attributes, or merges the attributes
// into the existing node with the same id.
func (g *Graph) AddNode(id string, attrs map[string]any) {
	if g.index == nil {
		g.reindex()
	}
	if pos, ok := g.index[id]; ok {
		for k, v := range attrs {
			g.Nodes[pos][k] = v
		}
		return
	}
	node := GraphNode{"id": id}
	for k, v := range attrs {
		node[k] = v
	}
	g.index[id] = len(g.Nodes)
	g.Nodes = append(g.Nodes, node)
}

// AddLink adds a directed edge. Links whose endpoints are not in the graph
// are dropped, mirroring how subgraph assembly discards dangling edges.
func (g *Graph) AddLink(link GraphLink) {
	if !g.HasNode(link.Source) || !g.HasNode(link.Target) {
		return
	}
	g.Links = append(g.Links, link)
}

// HasNode reports whether a node with the id exists.
func (g *Graph) HasNode(id string) bool {
	if g.index == nil {
		g.reindex()
	}
	_, ok := g.index[id]
	return ok
}

// Node returns the node with the id, or nil.
func (g *Graph) Node(id string) GraphNode {
	if g.index == nil {
		g.reindex()
	}
	if pos, ok := g.index[id]; ok {
		return g.Nodes[pos]
	}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		g.index[node.ID()] = i
	}
}

// successors returns the ids of the direct successors of a node, in a
// stable order.
func (g *Graph) successors(id string) []string {
	var succ []string
	for _, link := range g.Links {
		if link.Source == id {
			succ = append(succ, link.Target)
		}
	}
	sort.Strings(succ)
	return succ
}

// roots returns all nodes without predecessors. Filtering walks the graph
// downward from these.
func (g *Graph) roots() []string {
	hasPred := make(map[string]bool)
	for _, link := range g.Links {
		hasPred[link.Target] = true
	}
	var out []string
	for _, node := range g.Nodes {
		if !hasPred[node.ID()] {
			out = append(out, node.ID())
		}
	}
	sort.Strings(out)
	return out
}

// FilterTypes returns a new graph with node types removed or kept. When
// filterThese is true the listed types are dropped, otherwise only the
// listed types survive. Edges are rewired so that the nearest kept
// ancestor connects to each kept descendant.
func (g *Graph) FilterTypes(types []string, filterThese bool) *Graph {
	listed := make(map[string]bool, len(types))
	for _, t := range types {
		listed[t] = true
	}
	keep := func(nodeType string) bool {
		if filterThese {
			return !listed[nodeType]
		}
		return listed[nodeType]
	}

	out := NewGraph()
	visited := make(map[string]bool)
	for _, root := range g.roots() {
		g.filterWalk(out, root, "", keep, visited)
	}
	return out
}

func (g *Graph) filterWalk(out *Graph, id, source string, keep func(string) bool, visited map[string]bool) {
	key := fmt.Sprintf("%s|%s", source, id)
	if visited[key] {
		return
	}
	visited[key] = true

	node := g.Node(id)
	if node == nil {
		return
	}
	if keep(node.Type()) {
		out.AddNode(id, node)
		if source != "" {
			out.AddLink(GraphLink{Source: source, Target: id})
		}
		source = id
	}
	for _, succ := range g.successors(id) {
		g.filterWalk(out, succ, source, keep, visited)
	}
}

// GeoJSON projects the graph onto a GeoJSON feature collection, one
// feature per node that carries a geometry attribute.
func (g *Graph) GeoJSON() *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	for _, node := range g.Nodes {
		geo := nodeGeometry(node)
		if geo == nil {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   geo,
			Properties: map[string]any{"name": node.ID()},
		})
	}
	return fc
}

func nodeGeometry(node GraphNode) any {
	if geo, ok := node["geo"]; ok && geo != nil {
		return geo
	}
	if attrs, ok := node["attributes"].(map[string]any); ok {
		if geo, ok := attrs["geo"]; ok && geo != nil {
			return geo
		}
	}
	return nil
}
