// Package bridge translates node lifecycle events into staged writes.
//
// Notify runs when the domain layer reports a change: it queues the event
// on the transaction and stages the matching document operations right
// away. Restage runs at transaction commit and re-derives the whole root
// document from the live tree, so the root file of every committed
// revision is a full projection of the tree.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/versioning"
)

// TreeAccessor is the read-only view of live trees.
// *classtree.Forest implements it.
type TreeAccessor interface {
	Root(id model.CategoryID) (model.Node, error)
	Snapshot(node model.Node, includeCounts bool) (*model.Snapshot, error)
}

// Stager is the part of the versioning manager the bridge drives.
// *versioning.Manager implements it.
type Stager interface {
	ObjectName(id model.CategoryID) string
	Stage(ctx context.Context, node model.Node, doc []byte, kind model.EventKind, ts time.Time) error
	StageRemoval(ctx context.Context, node model.Node, kind model.EventKind, ts time.Time) error
	Discard(ctx context.Context, object string) error
}

// Queue receives every notified event, in arrival order.
type Queue interface {
	Append(ev model.Event)
}

// Bridge turns lifecycle events into Stager calls.
type Bridge struct {
	tree    TreeAccessor
	manager Stager
	clock   versioning.Clock
	logger  *slog.Logger
}

// New creates a Bridge. A nil clock uses the wall clock; a nil logger
// discards output.
func New(tree TreeAccessor, manager Stager, clock versioning.Clock, logger *slog.Logger) *Bridge {
	if clock == nil {
		clock = versioning.SystemClock
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{tree: tree, manager: manager, clock: clock, logger: logger}
}

// Notify queues ev on q and stages its document operations.
//
//	Created, Updated, Repaired  write the node's document
//	Deleted                     remove the node's subtree files
//	Moved                       remove the node's old subtree files, then
//	                            write the old and new parents' documents
//
// Fails with STRUCTURAL when the node's root cannot be found or a move
// lacks a parent or crosses classifications; the event is not queued and
// nothing is staged in that case.
func (b *Bridge) Notify(ctx context.Context, q Queue, ev model.Event) error {
	if ev == nil || ev.Node() == nil {
		return model.NewStructuralError("event without node")
	}
	if err := b.validate(ev); err != nil {
		return err
	}
	q.Append(ev)
	ts := b.clock.Now()

	switch e := ev.(type) {
	case model.Created, model.Updated, model.Repaired:
		return b.writeNode(ctx, ev.Node(), ev.Kind(), ts)
	case model.Deleted:
		return b.removeSubtree(ctx, e.Target, e.Target, model.KindDeleted, ts)
	case model.Moved:
		return b.move(ctx, e, ts)
	}
	return model.NewPersistenceError(fmt.Sprintf("unsupported event %T", ev), nil)
}

// validate checks everything Notify needs before anything is queued.
func (b *Bridge) validate(ev model.Event) error {
	switch e := ev.(type) {
	case model.Deleted:
		if e.Target.IsRoot() {
			return nil
		}
	case model.Moved:
		if e.OldParent == nil || e.NewParent == nil {
			return model.NewStructuralError(fmt.Sprintf("move of %s without both parents", e.Target.ID()))
		}
		if e.OldParent.ID().RootID != e.NewParent.ID().RootID || e.Target.ID().RootID != e.NewParent.ID().RootID {
			return model.NewStructuralError(fmt.Sprintf("move of %s crosses classifications", e.Target.ID()))
		}
	}
	if _, err := b.tree.Root(ev.Node().ID()); err != nil {
		return fmt.Errorf("resolve root of %s: %w", ev.Node().ID(), err)
	}
	return nil
}

func (b *Bridge) writeNode(ctx context.Context, node model.Node, kind model.EventKind, ts time.Time) error {
	snap, err := b.tree.Snapshot(node, false)
	if err != nil {
		return err
	}
	doc, err := model.EncodeDocument(snap)
	if err != nil {
		return model.NewPersistenceError(fmt.Sprintf("serialize %s", node.ID()), err)
	}
	return b.manager.Stage(ctx, node, doc, kind, ts)
}

// removeSubtree stages removal of at's file and of every descendant file
// listed in node's subtree. at addresses the files: for a move it is the
// node under its old parent.
func (b *Bridge) removeSubtree(ctx context.Context, node, at model.Node, kind model.EventKind, ts time.Time) error {
	snap, err := b.tree.Snapshot(node, false)
	if err != nil {
		return err
	}
	var remove func(n model.Node, s *model.Snapshot) error
	remove = func(n model.Node, s *model.Snapshot) error {
		if err := b.manager.StageRemoval(ctx, n, kind, ts); err != nil {
			return err
		}
		for _, child := range s.Children {
			if err := remove(&snapshotNode{id: child.ID, parent: n}, child); err != nil {
				return err
			}
		}
		return nil
	}
	return remove(at, snap)
}

// move removes the files of the node's old subtree, then writes the old
// parent's document without the node and the new parent's document with
// the node at the requested index. Parent documents carry counters. All
// operations land in the one object of the tree. A move within one
// parent keeps the node's path and only rewrites the parent.
func (b *Bridge) move(ctx context.Context, e model.Moved, ts time.Time) error {
	moved, err := b.tree.Snapshot(e.Target, true)
	if err != nil {
		return err
	}
	sameParent := e.OldParent.ID() == e.NewParent.ID()

	if !sameParent {
		old := &snapshotNode{id: e.Target.ID(), parent: e.OldParent}
		if err := b.removeSubtree(ctx, e.Target, old, model.KindMoved, ts); err != nil {
			return err
		}

		oldSnap, err := b.tree.Snapshot(e.OldParent, true)
		if err != nil {
			return err
		}
		oldSnap.RemoveChild(e.Target.ID())
		recount(oldSnap)
		if err := b.stageSnapshot(ctx, e.OldParent, oldSnap, ts); err != nil {
			return err
		}
	}

	newSnap, err := b.tree.Snapshot(e.NewParent, true)
	if err != nil {
		return err
	}
	newSnap.RemoveChild(e.Target.ID())
	newSnap.InsertChild(moved, e.Index)
	recount(newSnap)
	if err := b.stageSnapshot(ctx, e.NewParent, newSnap, ts); err != nil {
		return err
	}

	b.logger.Debug("staged move",
		"node", e.Target.ID().String(),
		"from", e.OldParent.ID().String(),
		"to", e.NewParent.ID().String(),
		"index", e.Index)
	return nil
}

// recount sets every counter in s to the number of categories below it
// and returns that number for s.
func recount(s *model.Snapshot) int {
	n := 0
	for _, c := range s.Children {
		n += 1 + recount(c)
	}
	s.Counter = &n
	return n
}

func (b *Bridge) stageSnapshot(ctx context.Context, node model.Node, snap *model.Snapshot, ts time.Time) error {
	doc, err := model.EncodeDocument(snap)
	if err != nil {
		return model.NewPersistenceError(fmt.Sprintf("serialize %s", node.ID()), err)
	}
	return b.manager.Stage(ctx, node, doc, model.KindMoved, ts)
}

// Restage re-serializes the whole root document of ev's tree from the
// live tree and stages it at the root path with ev's reason. Events that
// delete a root have no live tree left and stage nothing.
func (b *Bridge) Restage(ctx context.Context, ev model.Event) error {
	node := ev.Node()
	if ev.Kind() == model.KindDeleted && node.IsRoot() {
		return nil
	}
	root, err := b.tree.Root(node.ID())
	if err != nil {
		return fmt.Errorf("restage %s: %w", node.ID(), err)
	}
	snap, err := b.tree.Snapshot(root, false)
	if err != nil {
		return err
	}
	doc, err := model.EncodeDocument(snap)
	if err != nil {
		return model.NewPersistenceError(fmt.Sprintf("serialize %s", root.ID()), err)
	}
	return b.manager.Stage(ctx, root, doc, ev.Kind(), b.clock.Now())
}

// Discard drops the staged changes of ev's object.
func (b *Bridge) Discard(ctx context.Context, ev model.Event) error {
	return b.manager.Discard(ctx, b.manager.ObjectName(ev.Node().ID()))
}

// ObjectName returns the object ev affects.
func (b *Bridge) ObjectName(ev model.Event) string {
	return b.manager.ObjectName(ev.Node().ID())
}

// snapshotNode addresses a descendant that is only known from a snapshot.
type snapshotNode struct {
	id     model.CategoryID
	parent model.Node
}

func (n *snapshotNode) ID() model.CategoryID { return n.id }
func (n *snapshotNode) Parent() model.Node   { return n.parent }
func (n *snapshotNode) Level() int           { return n.parent.Level() + 1 }
func (n *snapshotNode) IsRoot() bool         { return false }
