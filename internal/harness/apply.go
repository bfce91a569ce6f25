package harness

import (
	"context"
	"fmt"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/model"
)

// Notifier receives the events of applied steps. *txn.Tx implements it.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

// ApplyStep changes the live tree as step describes and notifies tx of
// the resulting event.
func ApplyStep(ctx context.Context, f *classtree.Forest, tx Notifier, step Step) error {
	ev, err := mutate(f, step)
	if err != nil {
		return fmt.Errorf("%s %s: %w", step.Op, stepTarget(step), err)
	}
	return tx.Notify(ctx, ev)
}

func mutate(f *classtree.Forest, step Step) (model.Event, error) {
	index := -1
	if step.Index != nil {
		index = *step.Index
	}

	switch step.Op {
	case OpCreate:
		if step.ID == "" {
			root, err := f.AddClassification(step.Root, step.Labels)
			if err != nil {
				return nil, err
			}
			return model.Created{Target: root}, nil
		}
		parent, err := model.NewCategoryID(step.Root, step.Parent)
		if err != nil {
			return nil, err
		}
		n, err := f.AddCategory(parent, step.ID, step.Labels, index)
		if err != nil {
			return nil, err
		}
		return model.Created{Target: n}, nil

	case OpUpdate:
		id, err := model.NewCategoryID(step.Root, step.ID)
		if err != nil {
			return nil, err
		}
		n, err := f.SetLabels(id, step.Labels)
		if err != nil {
			return nil, err
		}
		return model.Updated{Target: n}, nil

	case OpDelete:
		id, err := model.NewCategoryID(step.Root, step.ID)
		if err != nil {
			return nil, err
		}
		n, err := f.Remove(id)
		if err != nil {
			return nil, err
		}
		return model.Deleted{Target: n}, nil

	case OpMove:
		id, err := model.NewCategoryID(step.Root, step.ID)
		if err != nil {
			return nil, err
		}
		parent, err := model.NewCategoryID(step.Root, step.Parent)
		if err != nil {
			return nil, err
		}
		moved, oldParent, err := f.Move(id, parent, index)
		if err != nil {
			return nil, err
		}
		return model.Moved{
			Target:    moved,
			OldParent: oldParent,
			NewParent: moved.Parent(),
			Index:     moved.Index(),
		}, nil

	case OpRepair:
		id, err := model.NewCategoryID(step.Root, step.ID)
		if err != nil {
			return nil, err
		}
		var n *classtree.Node
		if len(step.Labels) > 0 {
			n, err = f.SetLabels(id, step.Labels)
		} else {
			n, err = f.Lookup(id)
		}
		if err != nil {
			return nil, err
		}
		return model.Repaired{Target: n}, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func stepTarget(step Step) string {
	if step.ID == "" {
		return step.Root
	}
	return step.Root + ":" + step.ID
}
