package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/versioning"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Target   string // Node and revision the assertion addressed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Target)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// AssertionContext provides the history and live tree assertions read.
type AssertionContext struct {
	Ctx     context.Context
	Manager *versioning.Manager
	Forest  *classtree.Forest
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertChildren:
		return assertChildren(a, actx)
	case AssertHistory:
		return assertHistory(a, actx)
	case AssertDocumentContains:
		return assertDocumentContains(a, actx)
	case AssertRetrieveError:
		return assertRetrieveError(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// resolveNode addresses the assertion target: Path builds a detached
// chain, ID looks the node up in the live tree, neither means the root.
func resolveNode(a Assertion, f *classtree.Forest) (model.Node, error) {
	if len(a.Path) > 0 {
		return classtree.Chain(a.Root, a.Path...)
	}
	if a.ID == "" {
		return classtree.Chain(a.Root)
	}
	id, err := model.NewCategoryID(a.Root, a.ID)
	if err != nil {
		return nil, err
	}
	n, err := f.Lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%s is not in the live tree, address it by path: %w", id, err)
	}
	return n, nil
}

func target(a Assertion) string {
	name := a.Root
	switch {
	case len(a.Path) > 0:
		name += ":" + a.Path[len(a.Path)-1]
	case a.ID != "":
		name += ":" + a.ID
	}
	if a.Rev == 0 {
		return name + "@head"
	}
	return fmt.Sprintf("%s@%d", name, a.Rev)
}

// assertChildren reads the root document of the addressed revision and
// compares the child order of the target node.
func assertChildren(a Assertion, actx *AssertionContext) error {
	node, err := resolveNode(a, actx.Forest)
	if err != nil {
		return err
	}
	root, err := classtree.Chain(a.Root)
	if err != nil {
		return err
	}
	doc, err := actx.Manager.Retrieve(actx.Ctx, root, a.Rev)
	if err != nil {
		return &AssertionError{Type: a.Type, Target: target(a), Expected: "readable root document", Actual: err.Error()}
	}
	snap, err := model.DecodeClassification(doc.Data)
	if err != nil {
		return err
	}
	found := snap.Find(node.ID())
	if found == nil {
		return &AssertionError{Type: a.Type, Target: target(a), Expected: "node in document", Actual: "not found"}
	}

	got := found.ChildIDs()
	if !equalStrings(got, a.Children) {
		return &AssertionError{
			Type:     a.Type,
			Target:   target(a),
			Expected: fmt.Sprintf("children %v", a.Children),
			Actual:   fmt.Sprintf("children %v", got),
		}
	}
	return nil
}

func assertHistory(a Assertion, actx *AssertionContext) error {
	revs, err := actx.Manager.History(actx.Ctx, a.Root)
	if err != nil {
		return &AssertionError{Type: a.Type, Target: a.Root, Expected: fmt.Sprintf("reasons %v", a.Reasons), Actual: err.Error()}
	}
	got := make([]string, len(revs))
	for i, r := range revs {
		got[i] = reasonName(r.Reason)
	}
	if !equalStrings(got, a.Reasons) {
		return &AssertionError{
			Type:     a.Type,
			Target:   a.Root,
			Expected: fmt.Sprintf("reasons %v", a.Reasons),
			Actual:   fmt.Sprintf("reasons %v", got),
		}
	}
	return nil
}

func assertDocumentContains(a Assertion, actx *AssertionContext) error {
	node, err := resolveNode(a, actx.Forest)
	if err != nil {
		return err
	}
	doc, err := actx.Manager.Retrieve(actx.Ctx, node, a.Rev)
	if err != nil {
		return &AssertionError{Type: a.Type, Target: target(a), Expected: fmt.Sprintf("document containing %q", a.Contains), Actual: err.Error()}
	}
	if !bytes.Contains(doc.Data, []byte(a.Contains)) {
		return &AssertionError{
			Type:     a.Type,
			Target:   target(a),
			Expected: fmt.Sprintf("document containing %q", a.Contains),
			Actual:   string(doc.Data),
		}
	}
	return nil
}

func assertRetrieveError(a Assertion, actx *AssertionContext) error {
	node, err := resolveNode(a, actx.Forest)
	if err != nil {
		return err
	}
	_, err = actx.Manager.Retrieve(actx.Ctx, node, a.Rev)
	if got := outcomeOf(err); got != a.Code {
		return &AssertionError{Type: a.Type, Target: target(a), Expected: "error " + a.Code, Actual: got}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
