package kvo

import (
	"sort"

	"github.com/pumped-fn/kvo/pkg/pubsub"
)

// Node is one property of one object in the dependency graph
type Node struct {
	Object *Observable
	Key    string
}

// String renders the node as key@short-id
func (n Node) String() string {
	return n.Key + "@" + n.Object.ID().String()[:8]
}

// Edge records that setting Event on Owner recomputes Key on Dependent.
// Edges are owned by the scope that created them, so they can be listed and
// torn down without reaching into handler closures.
type Edge struct {
	Owner     *Observable
	Event     string
	Dependent *Observable
	Key       string

	sub *pubsub.Subscription
}

func (e *Edge) from() Node { return Node{Object: e.Owner, Key: e.Event} }
func (e *Edge) to() Node   { return Node{Object: e.Dependent, Key: e.Key} }

// Subscription returns the pubsub subscription backing the edge
func (e *Edge) Subscription() *pubsub.Subscription {
	return e.sub
}

// ReactiveGraph holds dependency edges with adjacency lists both ways
type ReactiveGraph struct {
	downstream map[Node][]Node
	upstream   map[Node][]Node
	edges      []*Edge
}

// NewReactiveGraph creates an empty graph
func NewReactiveGraph() *ReactiveGraph {
	return &ReactiveGraph{
		downstream: make(map[Node][]Node),
		upstream:   make(map[Node][]Node),
	}
}

// AddEdge adds e unless it would close a cycle, in which case it returns
// the cycle from e's dependent back to itself.
func (g *ReactiveGraph) AddEdge(e *Edge) []Node {
	from, to := e.from(), e.to()
	if cycle := g.pathBetween(to, from); cycle != nil {
		return append(cycle, to)
	}

	g.edges = append(g.edges, e)
	g.downstream[from] = appendUnique(g.downstream[from], to)
	g.upstream[to] = appendUnique(g.upstream[to], from)
	return nil
}

// RemoveEdge drops e. Adjacency is kept while another edge links the same
// two nodes.
func (g *ReactiveGraph) RemoveEdge(e *Edge) {
	g.edges = removeElement(g.edges, e)

	from, to := e.from(), e.to()
	for _, other := range g.edges {
		if other.from() == from && other.to() == to {
			return
		}
	}

	g.downstream[from] = removeElement(g.downstream[from], to)
	if len(g.downstream[from]) == 0 {
		delete(g.downstream, from)
	}
	g.upstream[to] = removeElement(g.upstream[to], from)
	if len(g.upstream[to]) == 0 {
		delete(g.upstream, to)
	}
}

// EdgesOf returns the edges touching obj as owner or dependent
func (g *ReactiveGraph) EdgesOf(obj *Observable) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Owner == obj || e.Dependent == obj {
			out = append(out, e)
		}
	}
	return out
}

// Edges returns a copy of all edges in insertion order
func (g *ReactiveGraph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// FindDependents returns every node reachable downstream of start, using an
// explicit stack rather than recursion
func (g *ReactiveGraph) FindDependents(start Node) []Node {
	stack := make([]Node, 0, 32)
	stack = append(stack, start)

	dependents := make([]Node, 0, 32)
	visited := make(map[Node]bool, 32)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != start {
			dependents = append(dependents, current)
		}

		for _, dep := range g.downstream[current] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}

	return dependents
}

// GetDirectDependents returns only direct dependents
func (g *ReactiveGraph) GetDirectDependents(n Node) []Node {
	deps := g.downstream[n]
	result := make([]Node, len(deps))
	copy(result, deps)
	return result
}

// Export returns a copy of the downstream adjacency lists
func (g *ReactiveGraph) Export() map[Node][]Node {
	out := make(map[Node][]Node, len(g.downstream))
	for k, v := range g.downstream {
		deps := make([]Node, len(v))
		copy(deps, v)
		out[k] = deps
	}
	return out
}

// Sources returns nodes with dependents but no dependencies, sorted by label
func (g *ReactiveGraph) Sources() []Node {
	var out []Node
	for n := range g.downstream {
		if len(g.upstream[n]) == 0 {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// pathBetween finds a downstream path from a to b, inclusive of both ends
func (g *ReactiveGraph) pathBetween(a, b Node) []Node {
	if a == b {
		return []Node{a}
	}

	parent := map[Node]Node{}
	visited := map[Node]bool{a: true}
	queue := []Node{a}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.downstream[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			if next == b {
				path := []Node{b}
				for n := b; n != a; {
					n = parent[n]
					path = append(path, n)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeElement[T comparable](slice []T, item T) []T {
	for i, existing := range slice {
		if existing == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
