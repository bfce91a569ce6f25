package txn

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/bridge"
	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/store"
	"github.com/roach88/classver/internal/testutil"
	"github.com/roach88/classver/internal/versioning"
)

// flakyCommitter fails every Commit while failing is set.
type flakyCommitter struct {
	*versioning.Manager
	failing bool
}

func (f *flakyCommitter) Commit(ctx context.Context, object string) (model.Revision, error) {
	if f.failing {
		return model.Revision{}, model.NewPersistenceError("store unavailable", errors.New("disk full"))
	}
	return f.Manager.Commit(ctx, object)
}

type fixture struct {
	forest    *classtree.Forest
	store     *store.Store
	manager   *versioning.Manager
	committer *flakyCommitter
	bridge    *bridge.Bridge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewStepClock(time.Time{}, 0)
	forest := classtree.New()
	manager := versioning.New(s, versioning.Options{Clock: clock, Actor: "tester"})
	return &fixture{
		forest:    forest,
		store:     s,
		manager:   manager,
		committer: &flakyCommitter{Manager: manager},
		bridge:    bridge.New(forest, manager, clock, nil),
	}
}

func (f *fixture) controller(opts Options) *Controller {
	if opts.IDs == nil {
		opts.IDs = testutil.NewFixedIDGenerator("tx-1")
	}
	return NewController(f.bridge, f.committer, opts)
}

func mustID(t *testing.T, root, id string) model.CategoryID {
	t.Helper()
	c, err := model.NewCategoryID(root, id)
	require.NoError(t, err)
	return c
}

// createColors adds colors{red} to the forest and notifies both creations.
func (f *fixture) createColors(t *testing.T, ctx context.Context, tx *Tx) {
	t.Helper()
	root, err := f.forest.AddClassification("colors", []model.Label{{Lang: "en", Text: "Colors"}})
	require.NoError(t, err)
	require.NoError(t, tx.Notify(ctx, model.Created{Target: root}))

	red, err := f.forest.AddCategory(root.ID(), "red", []model.Label{{Lang: "en", Text: "Red"}}, -1)
	require.NoError(t, err)
	require.NoError(t, tx.Notify(ctx, model.Created{Target: red}))
}

func (f *fixture) rootSnapshot(t *testing.T, ctx context.Context, rev int64) *model.Snapshot {
	t.Helper()
	root, err := classtree.Chain("colors")
	require.NoError(t, err)
	doc, err := f.manager.Retrieve(ctx, root, rev)
	require.NoError(t, err)
	snap, err := model.DecodeClassification(doc.Data)
	require.NoError(t, err)
	return snap
}
