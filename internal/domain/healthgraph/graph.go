// Package healthgraph holds the symptom -> condition -> risk lookup graph used
// by the symptom checker. A Graph is built once through a Builder and is
// read-only afterwards, so it can be shared freely between goroutines.
package healthgraph

import (
	"errors"
	"fmt"
	"strings"
)

// NodeType classifies a graph node.
type NodeType string

const (
	TypeSymptom   NodeType = "symptom"
	TypeCondition NodeType = "condition"
	TypeRisk      NodeType = "risk"
)

// ErrNodeNotFound is returned by lookups for a name that is not in the graph.
var ErrNodeNotFound = errors.New("node not found")

// Node is a named entry in the graph. Names are unique.
type Node struct {
	Type NodeType `json:"type"`
	Name string   `json:"name"`
}

// Edge links two nodes with a correlation weight in [0,1]. Edges are stored
// with a direction but every read treats them as undirected.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// RiskPath is one weighted route from a start node to a risk node.
// Conditions lists the intermediate nodes, empty for a direct edge.
type RiskPath struct {
	Conditions []string `json:"conditions"`
	RiskLevel  float64  `json:"riskLevel"`
	RiskNode   string   `json:"riskNode"`
}

// Normalize folds a user-supplied node name onto the graph's lowercase
// naming.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type edgeKey struct{ from, to string }

// Builder accumulates nodes and edges. It is not safe for concurrent use.
type Builder struct {
	nodes     map[string]Node
	nodeOrder []string
	edges     []Edge
	edgeIndex map[edgeKey]int
}

func NewBuilder() *Builder {
	return &Builder{
		nodes:     make(map[string]Node),
		edgeIndex: make(map[edgeKey]int),
	}
}

// AddNode inserts a node. It is a no-op when a node with that name exists,
// even if the type differs.
func (b *Builder) AddNode(t NodeType, name string) *Builder {
	if _, ok := b.nodes[name]; ok {
		return b
	}
	b.nodes[name] = Node{Type: t, Name: name}
	b.nodeOrder = append(b.nodeOrder, name)
	return b
}

// AddEdge upserts the edge for the ordered pair (from, to). AddEdge(A,B) and
// AddEdge(B,A) are tracked as two distinct edges.
func (b *Builder) AddEdge(from, to string, weight float64) error {
	if weight < 0 || weight > 1 {
		return fmt.Errorf("edge %s -> %s: weight %v outside [0,1]", from, to, weight)
	}
	k := edgeKey{from, to}
	if i, ok := b.edgeIndex[k]; ok {
		b.edges[i].Weight = weight
		return nil
	}
	b.edgeIndex[k] = len(b.edges)
	b.edges = append(b.edges, Edge{From: from, To: to, Weight: weight})
	return nil
}

// Build returns an immutable snapshot of the current contents.
func (b *Builder) Build() *Graph {
	g := &Graph{
		nodes:     make(map[string]Node, len(b.nodes)),
		nodeOrder: append([]string(nil), b.nodeOrder...),
		edges:     append([]Edge(nil), b.edges...),
		adjacent:  make(map[string][]neighbor),
	}
	for k, v := range b.nodes {
		g.nodes[k] = v
	}
	for _, e := range g.edges {
		g.adjacent[e.From] = append(g.adjacent[e.From], neighbor{name: e.To, weight: e.Weight})
		g.adjacent[e.To] = append(g.adjacent[e.To], neighbor{name: e.From, weight: e.Weight})
	}
	return g
}

type neighbor struct {
	name   string
	weight float64
}

// Graph is the read-only result of Builder.Build.
type Graph struct {
	nodes     map[string]Node
	nodeOrder []string
	edges     []Edge
	// adjacent lists both directions of every stored edge in insertion order.
	adjacent map[string][]neighbor
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, name := range g.nodeOrder {
		out = append(out, g.nodes[name])
	}
	return out
}

// NodesOfType returns the nodes of one type in insertion order.
func (g *Graph) NodesOfType(t NodeType) []Node {
	var out []Node
	for _, name := range g.nodeOrder {
		if n := g.nodes[name]; n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns a copy of the stored edges.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// ConnectedNodes returns the one-hop neighbours of name, following edges in
// either direction. The node itself and repeated names are left out, and
// edge endpoints that were never added as nodes are skipped.
func (g *Graph) ConnectedNodes(name string) ([]Node, error) {
	if _, ok := g.nodes[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	seen := map[string]bool{name: true}
	var out []Node
	for _, nb := range g.adjacent[name] {
		if seen[nb.name] {
			continue
		}
		n, ok := g.nodes[nb.name]
		if !ok {
			continue
		}
		seen[nb.name] = true
		out = append(out, n)
	}
	return out, nil
}

// RiskPaths runs a breadth-first search from start and reports one path per
// reachable risk node. Weights add up along a path and a branch ends at the
// first risk node it reaches. The visited set is shared by the whole search,
// so each risk node is reported once, via the first path that reached it.
// The start node is never reported, even when it is itself a risk node;
// the search expands from it like any other node.
func (g *Graph) RiskPaths(start string) ([]RiskPath, error) {
	if _, ok := g.nodes[start]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, start)
	}

	type item struct {
		name  string
		via   []string
		level float64
	}

	visited := map[string]bool{start: true}
	queue := []item{{name: start}}
	paths := []RiskPath{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, nb := range g.adjacent[cur.name] {
			if visited[nb.name] {
				continue
			}
			n, ok := g.nodes[nb.name]
			if !ok {
				continue
			}
			visited[nb.name] = true
			level := cur.level + nb.weight

			if n.Type == TypeRisk {
				paths = append(paths, RiskPath{
					Conditions: append([]string{}, cur.via...),
					RiskLevel:  level,
					RiskNode:   n.Name,
				})
				continue
			}

			via := make([]string, len(cur.via), len(cur.via)+1)
			copy(via, cur.via)
			queue = append(queue, item{name: n.Name, via: append(via, n.Name), level: level})
		}
	}
	return paths, nil
}

// Conditions returns every condition node reachable from start, nearest
// first. Traversal continues through condition nodes and stops at risk nodes.
func (g *Graph) Conditions(start string) ([]Node, error) {
	if _, ok := g.nodes[start]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, start)
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []Node
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.adjacent[cur] {
			if visited[nb.name] {
				continue
			}
			n, ok := g.nodes[nb.name]
			if !ok {
				continue
			}
			visited[nb.name] = true
			if n.Type == TypeCondition {
				out = append(out, n)
				queue = append(queue, n.Name)
			}
		}
	}
	return out, nil
}
