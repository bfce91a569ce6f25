package versioning

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/store"
	"github.com/roach88/classver/internal/testutil"
)

// testNode is a minimal model.Node with an explicit parent pointer.
type testNode struct {
	id     model.CategoryID
	parent *testNode
}

func (n *testNode) ID() model.CategoryID { return n.id }
func (n *testNode) IsRoot() bool         { return n.id.IsRoot() }

func (n *testNode) Parent() model.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *testNode) Level() int {
	if n.parent == nil {
		return 0
	}
	return n.parent.Level() + 1
}

func rootNode(t *testing.T, rootID string) *testNode {
	t.Helper()
	id, err := model.RootCategoryID(rootID)
	if err != nil {
		t.Fatalf("RootCategoryID(%q): %v", rootID, err)
	}
	return &testNode{id: id}
}

func childNode(t *testing.T, parent *testNode, localID string) *testNode {
	t.Helper()
	id, err := model.NewCategoryID(parent.id.RootID, localID)
	if err != nil {
		t.Fatalf("NewCategoryID(%q): %v", localID, err)
	}
	return &testNode{id: id, parent: parent}
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestManager(t *testing.T, opts Options) (*Manager, *store.Store) {
	t.Helper()
	s := createTestStore(t)
	if opts.Clock == nil {
		opts.Clock = testutil.NewStepClock(time.Time{}, 0)
	}
	if opts.Actor == "" {
		opts.Actor = "tester"
	}
	return New(s, opts), s
}

var ts = testutil.DefaultEpoch

// boolLookup answers every Bool key with one value.
type boolLookup struct{ value bool }

func (b boolLookup) Bool(string) (bool, bool)     { return b.value, true }
func (b boolLookup) String(string) (string, bool) { return "", false }
