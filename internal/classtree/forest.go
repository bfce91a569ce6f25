package classtree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/classver/internal/model"
)

// Forest holds every live classification tree.
//
// Thread-safety: all methods are safe for concurrent use. Nodes handed
// out are shared; callers must not mutate them directly.
type Forest struct {
	mu    sync.RWMutex
	roots map[string]*Node
	index map[model.CategoryID]*Node
}

// New returns an empty forest.
func New() *Forest {
	return &Forest{
		roots: make(map[string]*Node),
		index: make(map[model.CategoryID]*Node),
	}
}

// RootIDs returns the root ids of every tree, sorted.
func (f *Forest) RootIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.roots))
	for id := range f.roots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Node returns the live node with the given id.
func (f *Forest) Node(id model.CategoryID) (model.Node, error) {
	n, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Lookup is Node with the concrete type.
func (f *Forest) Lookup(id model.CategoryID) (*Node, error) {
	return f.lookup(id)
}

func (f *Forest) lookup(id model.CategoryID) (*Node, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.index[id]
	if !ok {
		return nil, model.NewNotFoundError("", "", fmt.Sprintf("category %s does not exist", id))
	}
	return n, nil
}

// Root returns the live root of id's tree.
// Fails with a STRUCTURAL error when the tree has no live root.
func (f *Forest) Root(id model.CategoryID) (model.Node, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	root, ok := f.roots[id.RootID]
	if !ok {
		return nil, model.NewStructuralError(fmt.Sprintf("classification %s has no root", id.RootID))
	}
	return root, nil
}

// Snapshot serializes node's subtree.
//
// Live nodes are resolved by id; detached *Node values (removed from the
// forest) serialize from their own retained subtree.
func (f *Forest) Snapshot(node model.Node, includeCounts bool) (*model.Snapshot, error) {
	if node == nil {
		return nil, model.NewStructuralError("cannot snapshot nil node")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.index[node.ID()]
	if !ok {
		detached, isNode := node.(*Node)
		if !isNode {
			return nil, model.NewNotFoundError("", "", fmt.Sprintf("category %s does not exist", node.ID()))
		}
		n = detached
	}
	return n.snapshot(includeCounts), nil
}

// AddClassification creates a new, empty tree.
func (f *Forest) AddClassification(rootID string, labels []model.Label) (*Node, error) {
	id, err := model.RootCategoryID(rootID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.roots[id.RootID]; exists {
		return nil, fmt.Errorf("classification %s already exists", id.RootID)
	}
	n := &Node{id: id, labels: append([]model.Label(nil), labels...)}
	f.roots[id.RootID] = n
	f.index[id] = n
	return n, nil
}

// AddCategory creates localID under parent at index. A negative or
// out-of-range index appends.
func (f *Forest) AddCategory(parent model.CategoryID, localID string, labels []model.Label, index int) (*Node, error) {
	id, err := model.NewCategoryID(parent.RootID, localID)
	if err != nil {
		return nil, err
	}
	if id.IsRoot() {
		return nil, fmt.Errorf("category id %s equals its root id", localID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.index[parent]
	if !ok {
		return nil, model.NewNotFoundError("", "", fmt.Sprintf("parent %s does not exist", parent))
	}
	if _, exists := f.index[id]; exists {
		return nil, fmt.Errorf("category %s already exists", id)
	}
	n := &Node{id: id, labels: append([]model.Label(nil), labels...), parent: p}
	p.insertChild(n, index)
	f.index[id] = n
	return n, nil
}

// SetLabels replaces the labels of a live node.
func (f *Forest) SetLabels(id model.CategoryID, labels []model.Label) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.index[id]
	if !ok {
		return nil, model.NewNotFoundError("", "", fmt.Sprintf("category %s does not exist", id))
	}
	n.labels = append([]model.Label(nil), labels...)
	return n, nil
}

// Remove detaches id and its subtree from the forest. The returned node
// keeps its parent pointer and children.
func (f *Forest) Remove(id model.CategoryID) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.index[id]
	if !ok {
		return nil, model.NewNotFoundError("", "", fmt.Sprintf("category %s does not exist", id))
	}
	if n.parent != nil {
		n.parent.removeChild(n)
	} else {
		delete(f.roots, id.RootID)
	}
	f.unindex(n)
	return n, nil
}

func (f *Forest) unindex(n *Node) {
	delete(f.index, n.id)
	for _, c := range n.children {
		f.unindex(c)
	}
}

// Move places id at index under newParent and returns the moved node and
// its former parent. Roots cannot move, and a node cannot move into its
// own subtree or into another tree.
func (f *Forest) Move(id, newParent model.CategoryID, index int) (moved, oldParent *Node, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.index[id]
	if !ok {
		return nil, nil, model.NewNotFoundError("", "", fmt.Sprintf("category %s does not exist", id))
	}
	if n.parent == nil {
		return nil, nil, model.NewStructuralError(fmt.Sprintf("cannot move root %s", id))
	}
	target, ok := f.index[newParent]
	if !ok {
		return nil, nil, model.NewNotFoundError("", "", fmt.Sprintf("parent %s does not exist", newParent))
	}
	if target.id.RootID != id.RootID {
		return nil, nil, model.NewStructuralError(fmt.Sprintf("cannot move %s into another classification", id))
	}
	if target == n || n.isAncestorOf(target) {
		return nil, nil, model.NewStructuralError(fmt.Sprintf("cannot move %s below itself", id))
	}

	oldParent = n.parent
	oldParent.removeChild(n)
	n.parent = target
	target.insertChild(n, index)
	return n, oldParent, nil
}

// AddSnapshot rebuilds a whole tree from its root document snapshot.
func (f *Forest) AddSnapshot(s *model.Snapshot) (*Node, error) {
	if s == nil || !s.ID.IsRoot() {
		return nil, fmt.Errorf("add snapshot: not a classification root")
	}
	root, err := f.AddClassification(s.ID.RootID, s.Labels)
	if err != nil {
		return nil, err
	}
	var add func(parent *Node, children []*model.Snapshot) error
	add = func(parent *Node, children []*model.Snapshot) error {
		for _, c := range children {
			n, err := f.AddCategory(parent.id, c.ID.ID, c.Labels, -1)
			if err != nil {
				return err
			}
			if err := add(n, c.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(root, s.Children); err != nil {
		_, _ = f.Remove(root.id)
		return nil, fmt.Errorf("add snapshot %s: %w", s.ID.RootID, err)
	}
	return root, nil
}

// Walk visits node and its descendants in pre-order.
func Walk(node *Node, visit func(*Node)) {
	visit(node)
	for _, c := range node.children {
		Walk(c, visit)
	}
}
