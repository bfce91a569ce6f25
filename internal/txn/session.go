package txn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/classver/internal/bridge"
	"github.com/roach88/classver/internal/metrics"
	"github.com/roach88/classver/internal/model"
)

// Mode selects how Commit groups revisions.
type Mode int

const (
	// CommitPerNode commits once per distinct node in the deduplicated
	// queue. Two nodes of one tree yield two revisions of its object.
	CommitPerNode Mode = iota

	// CommitPerObject commits once per distinct object, so one
	// transaction yields at most one revision per tree.
	CommitPerObject
)

// String returns "node" or "object".
func (m Mode) String() string {
	switch m {
	case CommitPerNode:
		return "node"
	case CommitPerObject:
		return "object"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "node" or "object"; empty means CommitPerNode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "node":
		return CommitPerNode, nil
	case "object":
		return CommitPerObject, nil
	}
	return 0, fmt.Errorf("unknown commit mode %q (want node or object)", s)
}

// Translator stages events and discards their objects.
// *bridge.Bridge implements it.
type Translator interface {
	Notify(ctx context.Context, q bridge.Queue, ev model.Event) error
	Restage(ctx context.Context, ev model.Event) error
	Discard(ctx context.Context, ev model.Event) error
	ObjectName(ev model.Event) string
}

// Committer commits staged objects.
// *versioning.Manager implements it.
type Committer interface {
	Commit(ctx context.Context, object string) (model.Revision, error)
	IsMutable() bool
}

// Options configures a Controller. The zero value is usable.
type Options struct {
	Mode    Mode
	IDs     IDGenerator
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Controller creates sessions sharing one bridge and manager.
type Controller struct {
	bridge  Translator
	manager Committer
	mode    Mode
	ids     IDGenerator
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewController creates a Controller.
func NewController(b Translator, m Committer, opts Options) *Controller {
	c := &Controller{
		bridge:  b,
		manager: m,
		mode:    opts.Mode,
		ids:     opts.IDs,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// NewSession returns an idle session. Sessions must not be shared between
// logical requests.
func (c *Controller) NewSession() *Session {
	return &Session{c: c}
}

// Run executes fn inside a new transaction of a fresh session. The
// transaction commits when fn returns nil and rolls back otherwise,
// including when the commit itself fails.
func (c *Controller) Run(ctx context.Context, fn func(tx *Tx) error) ([]model.Revision, error) {
	s := c.NewSession()
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(tx); err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
		return nil, err
	}
	revs, err := s.Commit(ctx)
	if err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
		return nil, err
	}
	return revs, nil
}

// Tx is the handle of one active transaction.
type Tx struct {
	id      string
	session *Session
	queue   *eventQueue
}

// ID returns the transaction id.
func (t *Tx) ID() string { return t.id }

// Events returns the queued events in arrival order.
func (t *Tx) Events() []model.Event { return t.queue.Events() }

// Notify queues ev and stages its documents.
// Fails with ILLEGAL_STATE once the transaction has ended.
func (t *Tx) Notify(ctx context.Context, ev model.Event) error {
	if !t.session.isCurrent(t) {
		return model.NewIllegalStateError(fmt.Sprintf("transaction %s is not active", t.id))
	}
	if err := t.session.c.bridge.Notify(ctx, t.queue, ev); err != nil {
		return fmt.Errorf("notify %s: %w", eventString(ev), err)
	}
	return nil
}

// Session is the transaction state of one logical request.
type Session struct {
	c *Controller

	mu           sync.Mutex
	active       *Tx
	rollbackOnly bool
	failed       []model.Event // undeduplicated queue kept after a failed commit
}

func (s *Session) isCurrent(t *Tx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == t
}

// IsActive reports whether a transaction is open.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// IsReady reports whether Begin can start a transaction without an
// implicit rollback: the store is mutable and nothing is active.
func (s *Session) IsReady() bool {
	return s.c.manager.IsMutable() && !s.IsActive()
}

// RollbackOnly reports whether the active transaction can only roll back.
// Fails with ILLEGAL_STATE when no transaction is active.
func (s *Session) RollbackOnly() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false, model.NewIllegalStateError("no active transaction")
	}
	return s.rollbackOnly, nil
}

// Begin opens a transaction. An already active transaction is rolled
// back first.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.c.logger.Warn("begin while transaction active, rolling back", "tx", s.active.id)
		if err := s.rollbackLocked(ctx); err != nil {
			return nil, fmt.Errorf("implicit rollback: %w", err)
		}
	}
	tx := &Tx{id: s.c.ids.Generate(), session: s, queue: newEventQueue()}
	s.active = tx
	s.c.logger.Debug("transaction started", "tx", tx.id)
	return tx, nil
}

// Commit deduplicates the queue by node, keeping the first event per
// node, then re-stages and commits each survivor's object.
//
// On failure the transaction becomes rollback-only and stays active with
// its full queue retained for Rollback.
func (s *Session) Commit(ctx context.Context) ([]model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, model.NewIllegalStateError("commit without active transaction")
	}
	if s.rollbackOnly {
		return nil, model.NewIllegalStateError(fmt.Sprintf("transaction %s is rollback-only", s.active.id))
	}

	tx := s.active
	events := tx.queue.Events()
	survivors := dedupByNode(events)

	var revs []model.Revision
	var err error
	switch s.c.mode {
	case CommitPerObject:
		revs, err = s.commitPerObject(ctx, survivors)
	default:
		revs, err = s.commitPerNode(ctx, survivors)
	}
	if err != nil {
		s.rollbackOnly = true
		s.failed = events
		s.c.metrics.SessionFinished(metrics.OutcomeFailed)
		s.c.logger.Error("transaction commit failed", "tx", tx.id, "events", len(events), "error", err)
		return revs, fmt.Errorf("commit transaction %s: %w", tx.id, err)
	}

	tx.queue.Close()
	s.active = nil
	s.c.metrics.SessionFinished(metrics.OutcomeCommitted)
	s.c.logger.Info("transaction committed",
		"tx", tx.id,
		"events", len(events),
		"nodes", len(survivors),
		"revisions", len(revs))
	return revs, nil
}

func (s *Session) commitPerNode(ctx context.Context, survivors []model.Event) ([]model.Revision, error) {
	var revs []model.Revision
	for _, ev := range survivors {
		rev, err := s.commitEvent(ctx, ev)
		if err != nil {
			return revs, err
		}
		if rev.Number != 0 {
			revs = append(revs, rev)
		}
	}
	return revs, nil
}

// commitPerObject commits each object once, restaged from the last
// surviving event that touched it.
func (s *Session) commitPerObject(ctx context.Context, survivors []model.Event) ([]model.Revision, error) {
	var order []string
	last := make(map[string]model.Event)
	for _, ev := range survivors {
		object := s.c.bridge.ObjectName(ev)
		if _, seen := last[object]; !seen {
			order = append(order, object)
		}
		last[object] = ev
	}

	var revs []model.Revision
	for _, object := range order {
		rev, err := s.commitEvent(ctx, last[object])
		if err != nil {
			return revs, err
		}
		if rev.Number != 0 {
			revs = append(revs, rev)
		}
	}
	return revs, nil
}

func (s *Session) commitEvent(ctx context.Context, ev model.Event) (model.Revision, error) {
	if err := s.c.bridge.Restage(ctx, ev); err != nil {
		return model.Revision{}, fmt.Errorf("restage %s: %w", eventString(ev), err)
	}
	rev, err := s.c.manager.Commit(ctx, s.c.bridge.ObjectName(ev))
	if err != nil {
		return model.Revision{}, fmt.Errorf("commit %s: %w", eventString(ev), err)
	}
	return rev, nil
}

// Rollback discards the staged changes of every queued event and ends
// the transaction. Fails with ILLEGAL_STATE when no transaction is active.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked(ctx)
}

func (s *Session) rollbackLocked(ctx context.Context) error {
	if s.active == nil {
		return model.NewIllegalStateError("rollback without active transaction")
	}
	tx := s.active

	events := tx.queue.Events()
	if s.rollbackOnly {
		events = mergeRetained(events, s.failed, s.c.logger)
	}

	var errs []error
	for _, ev := range events {
		if err := s.c.bridge.Discard(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("discard %s: %w", eventString(ev), err))
		}
	}

	s.rollbackOnly = false
	s.failed = nil
	tx.queue.Close()
	s.active = nil
	s.c.metrics.SessionFinished(metrics.OutcomeRolledBack)
	s.c.logger.Info("transaction rolled back", "tx", tx.id, "events", len(events))
	return errors.Join(errs...)
}

// mergeRetained appends the retained events not already queued. If the
// comparison fails, the retained list replaces the queue outright.
func mergeRetained(queued, retained []model.Event, logger *slog.Logger) (merged []model.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("merging retained events failed, using retained queue", "error", r)
			merged = append([]model.Event(nil), retained...)
		}
	}()
	merged = append([]model.Event(nil), queued...)
	for _, ev := range retained {
		found := false
		for _, q := range queued {
			if q == ev {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, ev)
		}
	}
	return merged
}

func eventString(ev model.Event) string {
	if ev == nil || ev.Node() == nil {
		return "<nil event>"
	}
	return ev.Kind().String() + " " + ev.Node().ID().String()
}
