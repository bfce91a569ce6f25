package classtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/model"
)

func TestForest_NodeAndRoot(t *testing.T) {
	f := colorsForest(t)

	navy, err := f.Node(mustID(t, "colors", "navy"))
	require.NoError(t, err)
	assert.Equal(t, 2, navy.Level())
	assert.False(t, navy.IsRoot())
	assert.Equal(t, mustID(t, "colors", "blue"), navy.Parent().ID())

	root, err := f.Root(navy.ID())
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Nil(t, root.Parent())
	assert.Equal(t, 0, root.Level())

	_, err = f.Node(mustID(t, "colors", "green"))
	assert.True(t, model.IsNotFound(err))

	_, err = f.Root(mustID(t, "shapes", ""))
	assert.True(t, model.IsStructural(err))

	assert.Equal(t, []string{"colors"}, f.RootIDs())
}

func TestForest_Snapshot(t *testing.T) {
	f := colorsForest(t)
	root, err := f.Root(mustID(t, "colors", ""))
	require.NoError(t, err)

	s, err := f.Snapshot(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, s.ChildIDs())
	assert.Nil(t, s.Counter)

	blue, err := f.Node(mustID(t, "colors", "blue"))
	require.NoError(t, err)
	s, err = f.Snapshot(blue, true)
	require.NoError(t, err)
	require.NotNil(t, s.Counter)
	assert.Equal(t, 1, *s.Counter)
	assert.Equal(t, 0, *s.Children[0].Counter)

	counted, err := f.Snapshot(root, true)
	require.NoError(t, err)
	assert.Equal(t, 3, *counted.Counter)
}

func TestForest_AddCategoryAtIndex(t *testing.T) {
	f := colorsForest(t)
	root := mustID(t, "colors", "")

	_, err := f.AddCategory(root, "green", en("Green"), 1)
	require.NoError(t, err)

	n, err := f.Lookup(root)
	require.NoError(t, err)
	s, err := f.Snapshot(n, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green", "blue"}, s.ChildIDs())

	green, err := f.Lookup(mustID(t, "colors", "green"))
	require.NoError(t, err)
	assert.Equal(t, 1, green.Index())
}

func TestForest_AddErrors(t *testing.T) {
	f := colorsForest(t)
	root := mustID(t, "colors", "")

	_, err := f.AddClassification("colors", nil)
	assert.Error(t, err, "duplicate root")

	_, err = f.AddCategory(root, "red", nil, -1)
	assert.Error(t, err, "duplicate category")

	_, err = f.AddCategory(root, "colors", nil, -1)
	assert.Error(t, err, "category named like its root")

	_, err = f.AddCategory(mustID(t, "colors", "green"), "lime", nil, -1)
	assert.True(t, model.IsNotFound(err))

	_, err = f.AddCategory(root, "bad/id", nil, -1)
	assert.Error(t, err)
}

func TestForest_SetLabels(t *testing.T) {
	f := colorsForest(t)
	n, err := f.SetLabels(mustID(t, "colors", "red"), en("Crimson"))
	require.NoError(t, err)
	assert.Equal(t, en("Crimson"), n.Labels())

	_, err = f.SetLabels(mustID(t, "colors", "green"), nil)
	assert.True(t, model.IsNotFound(err))
}

func TestForest_RemoveKeepsParentChain(t *testing.T) {
	f := colorsForest(t)

	blue, err := f.Remove(mustID(t, "colors", "blue"))
	require.NoError(t, err)
	assert.Equal(t, mustID(t, "colors", ""), blue.Parent().ID(), "detached node keeps its parent")
	assert.Equal(t, -1, blue.Index())

	_, err = f.Node(mustID(t, "colors", "navy"))
	assert.True(t, model.IsNotFound(err), "subtree is unindexed")

	s, err := f.Snapshot(blue, false)
	require.NoError(t, err, "detached nodes serialize from their retained subtree")
	assert.Equal(t, []string{"navy"}, s.ChildIDs())

	root, err := f.Root(blue.ID())
	require.NoError(t, err)
	rs, err := f.Snapshot(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"red"}, rs.ChildIDs())

	_, err = f.Remove(mustID(t, "colors", ""))
	require.NoError(t, err)
	_, err = f.Root(blue.ID())
	assert.True(t, model.IsStructural(err))
}

func TestForest_Move(t *testing.T) {
	f := colorsForest(t)

	moved, oldParent, err := f.Move(mustID(t, "colors", "navy"), mustID(t, "colors", ""), 0)
	require.NoError(t, err)
	assert.Equal(t, mustID(t, "colors", "blue"), oldParent.ID())
	assert.Equal(t, 1, moved.Level())
	assert.Empty(t, oldParent.Children())

	root, err := f.Lookup(mustID(t, "colors", ""))
	require.NoError(t, err)
	s, err := f.Snapshot(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"navy", "red", "blue"}, s.ChildIDs())
}

func TestForest_MoveErrors(t *testing.T) {
	f := colorsForest(t)
	_, err := f.AddClassification("shapes", nil)
	require.NoError(t, err)

	_, _, err = f.Move(mustID(t, "colors", ""), mustID(t, "colors", "red"), 0)
	assert.True(t, model.IsStructural(err), "root cannot move")

	_, _, err = f.Move(mustID(t, "colors", "blue"), mustID(t, "colors", "navy"), 0)
	assert.True(t, model.IsStructural(err), "into own subtree")

	_, _, err = f.Move(mustID(t, "colors", "blue"), mustID(t, "colors", "blue"), 0)
	assert.True(t, model.IsStructural(err), "onto itself")

	_, _, err = f.Move(mustID(t, "colors", "red"), mustID(t, "shapes", ""), 0)
	assert.True(t, model.IsStructural(err), "across trees")

	_, _, err = f.Move(mustID(t, "colors", "green"), mustID(t, "colors", ""), 0)
	assert.True(t, model.IsNotFound(err))
}

func TestForest_AddSnapshotRoundTrip(t *testing.T) {
	src := colorsForest(t)
	root, err := src.Lookup(mustID(t, "colors", ""))
	require.NoError(t, err)
	s, err := src.Snapshot(root, false)
	require.NoError(t, err)

	f := New()
	_, err = f.AddSnapshot(s)
	require.NoError(t, err)

	rebuilt, err := f.Lookup(mustID(t, "colors", ""))
	require.NoError(t, err)
	again, err := f.Snapshot(rebuilt, false)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	_, err = f.AddSnapshot(s)
	assert.Error(t, err, "tree already present")

	_, err = f.AddSnapshot(s.Children[0])
	assert.Error(t, err, "category snapshots are not roots")
}

func TestChain(t *testing.T) {
	n, err := Chain("colors", "blue", "navy")
	require.NoError(t, err)
	assert.Equal(t, mustID(t, "colors", "navy"), n.ID())
	assert.Equal(t, 2, n.Level())
	assert.Equal(t, mustID(t, "colors", "blue"), n.Parent().ID())
	assert.True(t, n.Parent().Parent().IsRoot())

	root, err := Chain("colors")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	_, err = Chain("colors", "colors")
	assert.True(t, model.IsStructural(err))

	_, err = Chain("", "x")
	assert.Error(t, err)
}

func TestWalk_PreOrder(t *testing.T) {
	f := colorsForest(t)
	root, err := f.Lookup(mustID(t, "colors", ""))
	require.NoError(t, err)

	var ids []string
	Walk(root, func(n *Node) { ids = append(ids, n.ID().String()) })
	assert.Equal(t, []string{"colors", "colors:red", "colors:blue", "colors:navy"}, ids)
}
