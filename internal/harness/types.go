package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/classver/internal/model"
)

// OutcomeOK marks a trace event that succeeded. Failed events carry their
// error code instead.
const OutcomeOK = "ok"

// outcomeError marks failures without a classver error code.
const outcomeError = "ERROR"

// TraceEvent is one step, commit, rollback or action of a script run.
type TraceEvent struct {
	Tx        int     `json:"tx" yaml:"tx"`
	Step      int     `json:"step,omitempty" yaml:"step,omitempty"`
	Op        string  `json:"op" yaml:"op"`
	Root      string  `json:"root,omitempty" yaml:"root,omitempty"`
	ID        string  `json:"id,omitempty" yaml:"id,omitempty"`
	Outcome   string  `json:"outcome" yaml:"outcome"`
	Revisions []int64 `json:"revisions,omitempty" yaml:"revisions,omitempty,flow"`
}

// Result is the outcome of a script execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool

	// Trace lists every executed operation in order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// History maps each root touched by the script to its revisions.
	// Roots without history are absent.
	History map[string][]model.Revision
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		History: make(map[string][]model.Revision),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := model.CodeOf(err); code != "" {
		return string(code)
	}
	return outcomeError
}

func revisionNumbers(revs []model.Revision) []int64 {
	var out []int64
	for _, r := range revs {
		out = append(out, r.Number)
	}
	return out
}

// reasonName returns the lowercase reason name used in scripts and
// snapshots, e.g. "created".
func reasonName(r model.Reason) string {
	return strings.ToLower(r.String())
}

func parseReasonName(s string) (model.Reason, error) {
	for _, r := range []model.Reason{
		model.ReasonCreated, model.ReasonUpdated, model.ReasonDeleted,
		model.ReasonRepaired, model.ReasonInitialized,
	} {
		if reasonName(r) == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reason %q", s)
}
