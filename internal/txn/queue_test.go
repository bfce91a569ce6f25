package txn

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/model"
)

func chain(t *testing.T, ids ...string) *classtree.Node {
	t.Helper()
	n, err := classtree.Chain("colors", ids...)
	require.NoError(t, err)
	return n
}

func TestEventQueue_ArrivalOrder(t *testing.T) {
	q := newEventQueue()
	a, b := chain(t, "a"), chain(t, "b")

	q.Append(model.Created{Target: a})
	q.Append(model.Updated{Target: b})

	events := q.Events()
	require.Len(t, events, 2)
	assert.Equal(t, a, events[0].Node())
	assert.Equal(t, b, events[1].Node())
}

func TestEventQueue_EventsIsACopy(t *testing.T) {
	q := newEventQueue()
	q.Append(model.Created{Target: chain(t, "a")})

	events := q.Events()
	events[0] = nil
	assert.NotNil(t, q.Events()[0])
}

func TestEventQueue_CloseDropsAppends(t *testing.T) {
	q := newEventQueue()
	q.Append(model.Created{Target: chain(t, "a")})
	q.Close()
	q.Append(model.Created{Target: chain(t, "b")})
	assert.Empty(t, q.Events())
}

func TestEventQueue_ConcurrentAppend(t *testing.T) {
	q := newEventQueue()
	node := chain(t, "a")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Append(model.Updated{Target: node})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Events(), 1000)
}

func TestDedupByNode_KeepsFirst(t *testing.T) {
	a, b := chain(t, "a"), chain(t, "b")
	events := []model.Event{
		model.Created{Target: a},
		model.Created{Target: b},
		model.Updated{Target: a},
		model.Deleted{Target: b},
	}

	got := dedupByNode(events)
	require.Len(t, got, 2)
	assert.Equal(t, model.KindCreated, got[0].Kind())
	assert.Equal(t, a, got[0].Node())
	assert.Equal(t, model.KindCreated, got[1].Kind())
	assert.Equal(t, b, got[1].Node())
}

// valueNode is a model.Node whose dynamic value is not comparable.
type valueNode struct {
	id   model.CategoryID
	tags []string
}

func (n valueNode) ID() model.CategoryID { return n.id }
func (n valueNode) Parent() model.Node   { return nil }
func (n valueNode) Level() int           { return 0 }
func (n valueNode) IsRoot() bool         { return true }

func TestMergeRetained(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, b := chain(t, "a"), chain(t, "b")
	queued := []model.Event{model.Created{Target: a}}
	retained := []model.Event{model.Created{Target: a}, model.Updated{Target: b}}

	merged := mergeRetained(queued, retained, logger)
	assert.Len(t, merged, 2)
	assert.Equal(t, b, merged[1].Node())
}

func TestMergeRetained_FallsBackToRetained(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	id, err := model.RootCategoryID("colors")
	require.NoError(t, err)
	n := valueNode{id: id, tags: []string{"x"}}

	queued := []model.Event{model.Created{Target: n}}
	retained := []model.Event{model.Updated{Target: n}, model.Created{Target: n}}

	merged := mergeRetained(queued, retained, logger)
	assert.Equal(t, retained, merged)
}
