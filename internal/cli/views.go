package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/classver/internal/harness"
	"github.com/roach88/classver/internal/model"
)

// RevisionView is the output form of one revision.
type RevisionView struct {
	Object  string    `json:"object"`
	Number  int64     `json:"number"`
	Reason  string    `json:"reason"`
	Created time.Time `json:"created"`
	Actor   string    `json:"actor"`
}

func newRevisionView(r model.Revision) RevisionView {
	return RevisionView{
		Object:  r.ObjectID,
		Number:  r.Number,
		Reason:  strings.ToLower(r.Reason.String()),
		Created: r.Created.UTC(),
		Actor:   r.Actor,
	}
}

// Text renders "object number reason created actor".
func (v RevisionView) Text() string {
	return fmt.Sprintf("%s\t%d\t%s\t%s\t%s\n", v.Object, v.Number, v.Reason, v.Created.Format(time.RFC3339), v.Actor)
}

// RevisionsView is a list of revisions.
type RevisionsView []RevisionView

func newRevisionsView(revs []model.Revision) RevisionsView {
	out := make(RevisionsView, 0, len(revs))
	for _, r := range revs {
		out = append(out, newRevisionView(r))
	}
	return out
}

// Text renders one revision per line.
func (v RevisionsView) Text() string {
	if len(v) == 0 {
		return "No revisions.\n"
	}
	var b strings.Builder
	for _, r := range v {
		b.WriteString(r.Text())
	}
	return b.String()
}

// DocumentView is the output form of a retrieved document.
type DocumentView struct {
	Object   string `json:"object"`
	Path     string `json:"path"`
	Revision int64  `json:"revision"`
	Reason   string `json:"reason"`
	Content  string `json:"content"`
}

// Text returns the document content.
func (v DocumentView) Text() string {
	return v.Content
}

// ObjectView reports an action on a whole object.
type ObjectView struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// Text renders "<action> <object>".
func (v ObjectView) Text() string {
	return fmt.Sprintf("%s %s\n", v.Action, v.Object)
}

// ObjectsView is a list of object names.
type ObjectsView []string

// Text renders one object per line.
func (v ObjectsView) Text() string {
	if len(v) == 0 {
		return "No objects.\n"
	}
	return strings.Join(v, "\n") + "\n"
}

// ScriptView is the output form of an applied script.
type ScriptView struct {
	Name   string               `json:"name"`
	Pass   bool                 `json:"pass"`
	Trace  []harness.TraceEvent `json:"trace"`
	Errors []string             `json:"errors,omitempty"`
}

// Text renders one trace line per event, then any errors.
func (v ScriptView) Text() string {
	var b strings.Builder
	for _, ev := range v.Trace {
		fmt.Fprintf(&b, "tx %d %s", ev.Tx, ev.Op)
		if ev.Root != "" {
			target := ev.Root
			if ev.ID != "" {
				target += ":" + ev.ID
			}
			fmt.Fprintf(&b, " %s", target)
		}
		fmt.Fprintf(&b, " %s", ev.Outcome)
		if len(ev.Revisions) > 0 {
			fmt.Fprintf(&b, " %v", ev.Revisions)
		}
		b.WriteByte('\n')
	}
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	return b.String()
}
