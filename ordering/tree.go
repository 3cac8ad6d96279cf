package ordering

import "sort"

// node is a trie over priority keys. An item ends at the node reached by
// its full key.
type node struct {
	members  []int
	children map[int]*node
}

func newNode() *node {
	return &node{children: map[int]*node{}}
}

func (n *node) insert(key []int, idx int) {
	current := n
	for _, priority := range key {
		child, ok := current.children[priority]
		if !ok {
			child = newNode()
			current.children[priority] = child
		}
		current = child
	}
	current.members = append(current.members, idx)
}

// walk visits groups depth first. A node's own group comes before its
// children, children in ascending priority.
func (n *node) walk(visit func(members []int)) {
	if len(n.members) > 0 {
		visit(n.members)
	}
	priorities := make([]int, 0, len(n.children))
	for p := range n.children {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	for _, p := range priorities {
		n.children[p].walk(visit)
	}
}
