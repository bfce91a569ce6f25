package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/classver/internal/bridge"
	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/config"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/purge"
	"github.com/roach88/classver/internal/store"
	"github.com/roach88/classver/internal/testutil"
	"github.com/roach88/classver/internal/txn"
	"github.com/roach88/classver/internal/versioning"
)

// DefaultActor is recorded on every revision a script run commits.
const DefaultActor = "harness"

// Harness executes scripts against a history and its live tree.
type Harness struct {
	forest     *classtree.Forest
	manager    *versioning.Manager
	controller *txn.Controller
	properties *config.Properties
	roots      []string
}

// New creates a Harness. properties feed purge actions of scripts that
// declare none of their own.
func New(m *versioning.Manager, f *classtree.Forest, c *txn.Controller, properties *config.Properties) *Harness {
	return &Harness{forest: f, manager: m, controller: c, properties: properties}
}

// Run executes a script and returns the result.
//
// Each script runs in a fresh in-memory database for isolation, with a
// stepping clock and a fixed transaction id so results are reproducible.
func Run(script *Script) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	mode, err := txn.ParseMode(script.CommitMode)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewStepClock(time.Time{}, 0)
	forest := classtree.New()
	manager := versioning.New(st, versioning.Options{Clock: clock, Actor: DefaultActor, Logger: logger})
	controller := txn.NewController(bridge.New(forest, manager, clock, logger), manager, txn.Options{
		Mode:   mode,
		IDs:    testutil.NewFixedIDGenerator("harness-tx"),
		Logger: logger,
	})

	return New(manager, forest, controller, nil).Execute(context.Background(), script)
}

// Execute runs every transaction of script, then collects the history of
// every touched root and evaluates the assertions.
//
// Execution flow:
// 1. Load the live tree of every touched root from its head document
// 2. Run each transaction, checking its expected error
// 3. Collect the history of every touched root
// 4. Evaluate assertions
func (h *Harness) Execute(ctx context.Context, script *Script) (*Result, error) {
	if len(script.Properties) > 0 {
		h.properties = config.NewProperties(script.Properties)
	}

	h.roots = nil
	for _, tx := range script.Transactions {
		if tx.Action != "" {
			h.touch(tx.Root)
		}
		for _, step := range tx.Steps {
			h.touch(step.Root)
		}
	}
	for _, root := range h.roots {
		id, err := model.RootCategoryID(root)
		if err != nil {
			return nil, err
		}
		if _, err := h.forest.Lookup(id); err == nil {
			continue
		}
		if _, err := LoadLiveTree(ctx, h.manager, h.forest, root); err != nil {
			return nil, fmt.Errorf("load %s: %w", root, err)
		}
	}

	result := NewResult()
	for i, tx := range script.Transactions {
		if err := h.runTransaction(ctx, i+1, tx, result); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
	}

	for _, root := range h.roots {
		revs, err := h.manager.History(ctx, root)
		if model.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", root, err)
		}
		result.History[root] = revs
	}

	actx := &AssertionContext{Ctx: ctx, Manager: h.manager, Forest: h.forest}
	for _, msg := range EvaluateAssertions(script.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// runTransaction executes one transaction. Only harness failures are
// returned; script failures are recorded on result.
func (h *Harness) runTransaction(ctx context.Context, n int, tx Transaction, result *Result) error {
	if tx.Action != "" {
		revs, err := h.runAction(ctx, tx)
		result.AddTrace(TraceEvent{Tx: n, Op: tx.Action, Root: tx.Root, Outcome: outcomeOf(err), Revisions: revisionNumbers(revs)})
		h.expect(result, n, tx.ExpectError, err)
		return nil
	}

	s := h.controller.NewSession()
	t, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	for j, step := range tx.Steps {
		err := ApplyStep(ctx, h.forest, t, step)
		result.AddTrace(TraceEvent{Tx: n, Step: j + 1, Op: step.Op, Root: step.Root, ID: step.ID, Outcome: outcomeOf(err)})
		if err != nil {
			h.expect(result, n, tx.ExpectError, err)
			return h.abort(ctx, n, s, tx, result)
		}
	}

	if tx.End == EndRollback {
		h.expect(result, n, tx.ExpectError, nil)
		return h.abort(ctx, n, s, tx, result)
	}

	revs, err := s.Commit(ctx)
	result.AddTrace(TraceEvent{Tx: n, Op: EndCommit, Outcome: outcomeOf(err), Revisions: revisionNumbers(revs)})
	h.expect(result, n, tx.ExpectError, err)
	if err != nil {
		return h.abort(ctx, n, s, tx, result)
	}
	return nil
}

// abort rolls the session back and reloads the live trees the
// transaction touched from their head documents.
func (h *Harness) abort(ctx context.Context, n int, s *txn.Session, tx Transaction, result *Result) error {
	err := s.Rollback(ctx)
	result.AddTrace(TraceEvent{Tx: n, Op: EndRollback, Outcome: outcomeOf(err)})
	if err != nil {
		result.AddError(fmt.Sprintf("transaction %d: rollback: %v", n, err))
	}
	seen := make(map[string]bool)
	for _, step := range tx.Steps {
		if seen[step.Root] {
			continue
		}
		seen[step.Root] = true
		if _, err := LoadLiveTree(ctx, h.manager, h.forest, step.Root); err != nil {
			return fmt.Errorf("reload %s: %w", step.Root, err)
		}
	}
	return nil
}

func (h *Harness) runAction(ctx context.Context, tx Transaction) ([]model.Revision, error) {
	switch tx.Action {
	case ActionInitialize:
		rev, err := h.manager.Initialize(ctx, tx.Root)
		if err != nil {
			return nil, err
		}
		return []model.Revision{rev}, nil
	case ActionRestore:
		rev, err := h.manager.Restore(ctx, tx.Root)
		if err != nil {
			return nil, err
		}
		if _, err := LoadLiveTree(ctx, h.manager, h.forest, tx.Root); err != nil {
			return nil, err
		}
		return []model.Revision{rev}, nil
	case ActionPurge:
		return nil, h.manager.Purge(ctx, tx.Root, purge.NewPolicy(h.properties, ""))
	}
	return nil, fmt.Errorf("unknown action %q", tx.Action)
}

// expect records an error unless err carries the expected code.
func (h *Harness) expect(result *Result, n int, want string, err error) {
	got := ""
	if err != nil {
		got = outcomeOf(err)
	}
	if got == want {
		return
	}
	switch {
	case want == "":
		result.AddError(fmt.Sprintf("transaction %d: unexpected error: %v", n, err))
	case err == nil:
		result.AddError(fmt.Sprintf("transaction %d: expected error %s, got success", n, want))
	default:
		result.AddError(fmt.Sprintf("transaction %d: expected error %s, got %v", n, want, err))
	}
}

func (h *Harness) touch(root string) {
	for _, r := range h.roots {
		if r == root {
			return
		}
	}
	h.roots = append(h.roots, root)
}
