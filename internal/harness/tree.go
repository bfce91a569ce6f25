package harness

import (
	"context"
	"fmt"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/versioning"
)

// LoadLiveTree replaces rootID's tree in f with the one recorded in its
// head root document. It reports false, leaving the tree absent, when the
// history holds no readable root document.
func LoadLiveTree(ctx context.Context, m *versioning.Manager, f *classtree.Forest, rootID string) (bool, error) {
	root, err := classtree.Chain(rootID)
	if err != nil {
		return false, err
	}
	if _, err := f.Lookup(root.ID()); err == nil {
		if _, err := f.Remove(root.ID()); err != nil {
			return false, err
		}
	}

	doc, err := m.Retrieve(ctx, root, 0)
	switch {
	case model.IsNotFound(err), model.IsDeleted(err), model.IsUninitialized(err):
		return false, nil
	case err != nil:
		return false, err
	}

	snap, err := model.DecodeClassification(doc.Data)
	if err != nil {
		return false, fmt.Errorf("load live tree %s: %w", rootID, err)
	}
	if _, err := f.AddSnapshot(snap); err != nil {
		return false, fmt.Errorf("load live tree %s: %w", rootID, err)
	}
	return true, nil
}
