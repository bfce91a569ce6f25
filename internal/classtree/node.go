package classtree

import (
	"fmt"

	"github.com/roach88/classver/internal/model"
)

// Node is one classification or category.
type Node struct {
	id       model.CategoryID
	labels   []model.Label
	parent   *Node
	children []*Node
}

// ID returns the node's identity.
func (n *Node) ID() model.CategoryID { return n.id }

// IsRoot reports whether n is a classification root.
func (n *Node) IsRoot() bool { return n.id.IsRoot() }

// Parent returns the parent node, or nil for roots.
func (n *Node) Parent() model.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Level returns the number of ancestors of n.
func (n *Node) Level() int {
	level := 0
	for p := n.parent; p != nil; p = p.parent {
		level++
	}
	return level
}

// Labels returns a copy of the node's labels.
func (n *Node) Labels() []model.Label {
	return append([]model.Label(nil), n.labels...)
}

// Children returns the direct children in order.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Index returns n's position among its siblings, or -1 for roots and
// detached nodes.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) descendants() int {
	total := 0
	for _, c := range n.children {
		total += 1 + c.descendants()
	}
	return total
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func (n *Node) insertChild(child *Node, index int) {
	if index < 0 || index > len(n.children) {
		index = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// snapshot serializes n's subtree. With counts, every node carries the
// number of categories below it.
func (n *Node) snapshot(includeCounts bool) *model.Snapshot {
	s := &model.Snapshot{ID: n.id, Labels: n.Labels()}
	if includeCounts {
		count := n.descendants()
		s.Counter = &count
	}
	for _, c := range n.children {
		s.Children = append(s.Children, c.snapshot(includeCounts))
	}
	return s
}

// Chain builds a detached ancestor chain rootID → localIDs... and returns
// its last node. Used to address categories that no longer exist in a
// live tree, e.g. to read their history.
func Chain(rootID string, localIDs ...string) (*Node, error) {
	id, err := model.RootCategoryID(rootID)
	if err != nil {
		return nil, err
	}
	n := &Node{id: id}
	for _, local := range localIDs {
		cid, err := model.NewCategoryID(rootID, local)
		if err != nil {
			return nil, err
		}
		if cid.IsRoot() {
			return nil, model.NewStructuralError(fmt.Sprintf("category %s repeats its root id", cid))
		}
		n = &Node{id: cid, parent: n}
	}
	return n, nil
}
