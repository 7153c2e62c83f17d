package extensions

import (
	"github.com/m1gwings/treedrawer/tree"

	"github.com/pumped-fn/kvo"
)

// RenderDependencyTree draws the scope's dependency graph, one branch per
// source key. A property reachable along several paths appears under each.
func RenderDependencyTree(scope *kvo.Scope) string {
	return renderTree(scope.Graph(), nil)
}

func renderTree(g *kvo.ReactiveGraph, label func(kvo.Node) string) string {
	if label == nil {
		label = kvo.Node.String
	}

	sources := g.Sources()
	if len(sources) == 0 {
		return "(no dependencies)"
	}

	root := tree.NewTree(tree.NodeString("scope"))
	for _, src := range sources {
		addBranch(g, root, src, label, map[kvo.Node]bool{})
	}
	return root.String()
}

func addBranch(g *kvo.ReactiveGraph, parent *tree.Tree, n kvo.Node, label func(kvo.Node) string, onPath map[kvo.Node]bool) {
	child := parent.AddChild(tree.NodeString(label(n)))
	if onPath[n] {
		return
	}
	onPath[n] = true
	for _, dep := range g.GetDirectDependents(n) {
		addBranch(g, child, dep, label, onPath)
	}
	delete(onPath, n)
}
