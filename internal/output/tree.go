package output

import (
	"fmt"
	"io"

	"github.com/maxvaer/http11probe/internal/testcase"
)

type treeNode struct {
	name     string
	leaves   int
	children []*treeNode
}

func (n *treeNode) findOrCreate(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	child := &treeNode{name: name}
	n.children = append(n.children, child)
	return child
}

// PrintTree renders every non-passing result grouped by category, and by
// target first when byTarget is set. Categories keep catalog order.
func PrintTree(w io.Writer, results []testcase.Result, byTarget bool) {
	var interesting []testcase.Result
	for _, r := range results {
		if r.Verdict != testcase.Pass && r.Verdict != testcase.Skip {
			interesting = append(interesting, r)
		}
	}
	if len(interesting) == 0 {
		return
	}

	root := &treeNode{name: "/"}
	for _, cat := range testcase.Categories {
		for _, r := range interesting {
			if r.Meta().Category != cat {
				continue
			}
			node := root
			if byTarget {
				node = node.findOrCreate(r.Target.String())
				node.leaves++
			}
			node = node.findOrCreate(string(cat))
			node.leaves++
			node.findOrCreate(fmt.Sprintf("%-35s %s", r.Meta().ID, Symbol(&r)))
		}
	}

	fmt.Fprintf(w, "\n  Non-passing tests:\n")
	printChildren(w, root, "  ")
}

func printChildren(w io.Writer, node *treeNode, prefix string) {
	for i, child := range node.children {
		isLast := i == len(node.children)-1
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		label := child.name
		if child.leaves > 0 {
			label = fmt.Sprintf("%s (%d)", child.name, child.leaves)
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, label)
		nextPrefix := prefix + "│   "
		if isLast {
			nextPrefix = prefix + "    "
		}
		printChildren(w, child, nextPrefix)
	}
}
