package txn

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/metrics"
	"github.com/roach88/classver/internal/model"
)

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	assert.False(t, s.IsActive())
	assert.True(t, s.IsReady())
	_, err := s.RollbackOnly()
	assert.True(t, model.IsIllegalState(err), "rollback-only is undefined while idle")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID())
	assert.True(t, s.IsActive())
	assert.False(t, s.IsReady())

	ro, err := s.RollbackOnly()
	require.NoError(t, err)
	assert.False(t, ro)

	revs, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Empty(t, revs, "empty transaction commits nothing")
	assert.False(t, s.IsActive())
}

func TestSession_RollbackTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	_, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx))

	err = s.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, model.IsIllegalState(err))
}

func TestSession_CommitWithoutBegin(t *testing.T) {
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	_, err := s.Commit(context.Background())
	assert.True(t, model.IsIllegalState(err))
}

func TestSession_ColorsScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(Options{})

	s := c.NewSession()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	f.createColors(t, ctx, tx)
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"red"}, f.rootSnapshot(t, ctx, 0).ChildIDs())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	red, err := f.forest.Remove(mustID(t, "colors", "red"))
	require.NoError(t, err)
	require.NoError(t, tx.Notify(ctx, model.Deleted{Target: red}))
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	assert.Empty(t, f.rootSnapshot(t, ctx, 0).ChildIDs(), "root reflects red absent")

	doc, err := f.manager.Retrieve(ctx, red, 1)
	require.NoError(t, err, "red is still readable in revision 1")
	assert.Contains(t, string(doc.Data), `ID="red"`)

	_, err = f.manager.Retrieve(ctx, red, 0)
	assert.True(t, model.IsDeleted(err))
}

func TestSession_CommitPerNodeProducesRevisionPerNode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	f.createColors(t, ctx, tx)

	revs, err := s.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, revs, 2, "one commit per distinct node")
	assert.Equal(t, int64(1), revs[0].Number)
	assert.Equal(t, int64(2), revs[1].Number)

	first := f.rootSnapshot(t, ctx, 1)
	assert.Equal(t, []string{"red"}, first.ChildIDs(), "first revision already holds every staged change")
}

func TestSession_CommitPerObjectProducesOneRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{Mode: CommitPerObject}).NewSession()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	f.createColors(t, ctx, tx)

	revs, err := s.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, revs, 1)

	history, err := f.manager.History(ctx, "colors")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSession_DedupKeepsFirstEventPerNode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	root, err := f.forest.AddClassification("colors", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Notify(ctx, model.Created{Target: root}))
	_, err = f.forest.SetLabels(root.ID(), []model.Label{{Lang: "en", Text: "Colours"}})
	require.NoError(t, err)
	require.NoError(t, tx.Notify(ctx, model.Updated{Target: root}))
	assert.Len(t, tx.Events(), 2)

	revs, err := s.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, model.ReasonCreated, revs[0].Reason, "the first event of the node is the representative")

	snap := f.rootSnapshot(t, ctx, 0)
	assert.Equal(t, "Colours", snap.Labels[0].Text, "restaging reads the live tree")
}

func TestSession_FailedCommitBecomesRollbackOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	f.createColors(t, ctx, tx)

	f.committer.failing = true
	_, err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))

	assert.True(t, s.IsActive(), "failed commit keeps the transaction open")
	ro, err := s.RollbackOnly()
	require.NoError(t, err)
	assert.True(t, ro)

	_, err = s.Commit(ctx)
	assert.True(t, model.IsIllegalState(err), "rollback-only transactions cannot commit")

	require.NoError(t, s.Rollback(ctx))
	assert.False(t, s.IsActive())
	_, err = s.RollbackOnly()
	assert.True(t, model.IsIllegalState(err))

	ops, err := f.store.StagedOps(ctx, "class:colors")
	require.NoError(t, err)
	assert.Empty(t, ops, "rollback discards staged changes")

	exists, err := f.store.ObjectExists(ctx, "class:colors")
	require.NoError(t, err)
	assert.False(t, exists)

	f.committer.failing = false
	_, err = s.Begin(ctx)
	require.NoError(t, err, "session is reusable after rollback")
	ro, err = s.RollbackOnly()
	require.NoError(t, err)
	assert.False(t, ro)
	require.NoError(t, s.Rollback(ctx))
}

func TestSession_BeginWhileActiveRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	f.createColors(t, ctx, first)

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsActive())

	ops, err := f.store.StagedOps(ctx, "class:colors")
	require.NoError(t, err)
	assert.Empty(t, ops, "implicit rollback discarded the first transaction")

	red, err := f.forest.Lookup(mustID(t, "colors", "red"))
	require.NoError(t, err)
	err = first.Notify(ctx, model.Updated{Target: red})
	assert.True(t, model.IsIllegalState(err), "stale handle is rejected")

	require.NoError(t, second.Notify(ctx, model.Updated{Target: red}))
	assert.Len(t, second.Events(), 1)
	require.NoError(t, s.Rollback(ctx))
}

func TestSession_NotifyErrorPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	orphan, err := classtree.Chain("shapes", "circle")
	require.NoError(t, err)
	err = tx.Notify(ctx, model.Created{Target: orphan})
	assert.True(t, model.IsStructural(err))
	require.NoError(t, s.Rollback(ctx))
}

func TestSession_RejectedNotifyDoesNotSpoilCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.controller(Options{}).NewSession()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	orphan, err := classtree.Chain("shapes", "circle")
	require.NoError(t, err)
	require.Error(t, tx.Notify(ctx, model.Created{Target: orphan}))
	assert.Empty(t, tx.Events())

	f.createColors(t, ctx, tx)
	revs, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, revs, 2)
}

func TestController_Run(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(Options{})

	revs, err := c.Run(ctx, func(tx *Tx) error {
		f.createColors(t, ctx, tx)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, revs, 2)

	_, err = c.Run(ctx, func(tx *Tx) error {
		blue, err := f.forest.AddCategory(mustID(t, "colors", ""), "blue", nil, -1)
		require.NoError(t, err)
		require.NoError(t, tx.Notify(ctx, model.Created{Target: blue}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	ops, err := f.store.StagedOps(ctx, "class:colors")
	require.NoError(t, err)
	assert.Empty(t, ops, "failed run rolls back")

	f.committer.failing = true
	_, err = c.Run(ctx, func(tx *Tx) error {
		red, err := f.forest.Lookup(mustID(t, "colors", "red"))
		require.NoError(t, err)
		return tx.Notify(ctx, model.Updated{Target: red})
	})
	assert.True(t, model.IsPersistence(err))
	ops, err = f.store.StagedOps(ctx, "class:colors")
	require.NoError(t, err)
	assert.Empty(t, ops, "failed commit rolls back")
}

func TestSession_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := metrics.New(prometheus.NewRegistry())
	s := f.controller(Options{Metrics: rec}).NewSession()

	_, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	_, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx))

	assert.Equal(t, 1.0, promtest.ToFloat64(rec.SessionsTotal.WithLabelValues(metrics.OutcomeCommitted)))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.SessionsTotal.WithLabelValues(metrics.OutcomeRolledBack)))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, CommitPerNode, m)

	m, err = ParseMode("Object")
	require.NoError(t, err)
	assert.Equal(t, CommitPerObject, m)
	assert.Equal(t, "object", m.String())

	_, err = ParseMode("tree")
	assert.Error(t, err)
}
