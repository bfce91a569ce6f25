package versioning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/classver/internal/metrics"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/purge"
	"github.com/roach88/classver/internal/store"
)

const (
	// DefaultPrefix is prepended to a root id to name its object.
	DefaultPrefix = "class:"

	// ClassSubDir is the folder holding documents when UseClassSubDir is set.
	ClassSubDir = "classification"

	fileExt = ".xml"
)

// ObjectStore is the versioned-object store capability the Manager needs.
// *store.Store implements it.
type ObjectStore interface {
	StageWrite(ctx context.Context, objectID, path string, data []byte, info model.VersionInfo) error
	StageRemove(ctx context.Context, objectID, path string, info model.VersionInfo) error
	StagedInfo(ctx context.Context, objectID string) (model.VersionInfo, bool, error)
	CommitStaged(ctx context.Context, objectID string, info model.VersionInfo) (int64, error)
	DiscardStaged(ctx context.Context, objectID string) error
	ReadFile(ctx context.Context, objectID, path string, rev int64) ([]byte, error)
	RevisionInfo(ctx context.Context, objectID string, rev int64) (model.VersionInfo, int64, error)
	Files(ctx context.Context, objectID string, rev int64) ([]string, error)
	Versions(ctx context.Context, objectID string) ([]store.Version, error)
	CreateEmpty(ctx context.Context, objectID string, info model.VersionInfo) error
	PurgeObject(ctx context.Context, objectID string) error
	IsMutable() bool
}

// PurgePolicy decides whether history may be destroyed.
// *purge.Policy implements it.
type PurgePolicy interface {
	MayPurge(s purge.Subject) (bool, error)
}

// Clock supplies revision timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Prefix names objects; empty uses DefaultPrefix.
	Prefix string
	// UseClassSubDir places every document under ClassSubDir.
	UseClassSubDir bool
	// Actor is recorded as the author of every revision.
	Actor string
	// Clock stamps Initialize and Restore revisions; nil uses SystemClock.
	Clock Clock
	// Logger receives debug output; nil discards it.
	Logger *slog.Logger
	// Metrics counts revisions and discards; nil records nothing.
	Metrics *metrics.Recorder
}

// Manager stages, commits and reads node documents of classification trees.
type Manager struct {
	store      ObjectStore
	prefix     string
	rootFolder string
	actor      string
	clock      Clock
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// New creates a Manager over s.
func New(s ObjectStore, opts Options) *Manager {
	m := &Manager{
		store:   s,
		prefix:  opts.Prefix,
		actor:   opts.Actor,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if opts.UseClassSubDir {
		m.rootFolder = ClassSubDir + "/"
	}
	if m.clock == nil {
		m.clock = SystemClock
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

// Prefix returns the object name prefix.
func (m *Manager) Prefix() string {
	return m.prefix
}

// IsMutable reports whether the backing store accepts writes.
func (m *Manager) IsMutable() bool {
	return m.store.IsMutable()
}

// ObjectName returns the versioned object identity of id's tree.
func (m *Manager) ObjectName(id model.CategoryID) string {
	return m.prefix + id.RootID
}

// Path returns the internal file path of node.
//
// Roots live at "<rootId>.xml". Other nodes join every ancestor id from the
// root down to the node with "/" and end in "<localId>.xml". Fails with a
// STRUCTURAL error when the parent chain does not end at a root.
func (m *Manager) Path(node model.Node) (string, error) {
	if node == nil {
		return "", model.NewStructuralError("cannot derive path of nil node")
	}
	if node.IsRoot() {
		return m.rootFolder + node.ID().RootID + fileExt, nil
	}

	var ids []string
	n := node
	for !n.IsRoot() {
		ids = append(ids, n.ID().ID)
		parent := n.Parent()
		if parent == nil {
			return "", model.NewStructuralError(fmt.Sprintf("node %s has no parent and is not a root", n.ID()))
		}
		if parent.ID().RootID != node.ID().RootID {
			return "", model.NewStructuralError(fmt.Sprintf("parent %s of %s belongs to another tree", parent.ID(), n.ID()))
		}
		n = parent
	}
	ids = append(ids, n.ID().RootID)

	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return m.rootFolder + strings.Join(ids, "/") + fileExt, nil
}

func (m *Manager) info(kind model.EventKind, ts time.Time) (model.VersionInfo, error) {
	reason, err := model.ReasonFor(kind)
	if err != nil {
		return model.VersionInfo{}, err
	}
	return model.NewVersionInfo(reason, ts, m.actor), nil
}

// Stage records a write of doc at node's path in its tree's object.
// The object's pending metadata becomes the reason of kind at ts.
func (m *Manager) Stage(ctx context.Context, node model.Node, doc []byte, kind model.EventKind, ts time.Time) error {
	info, err := m.info(kind, ts)
	if err != nil {
		return err
	}
	path, err := m.Path(node)
	if err != nil {
		return err
	}
	object := m.ObjectName(node.ID())
	if err := m.store.StageWrite(ctx, object, path, doc, info); err != nil {
		return fmt.Errorf("stage %s: %w", node.ID(), err)
	}
	m.logger.Debug("staged write", "object", object, "path", path, "reason", kind)
	return nil
}

// StageRemoval records the removal of node's path in its tree's object.
func (m *Manager) StageRemoval(ctx context.Context, node model.Node, kind model.EventKind, ts time.Time) error {
	info, err := m.info(kind, ts)
	if err != nil {
		return err
	}
	path, err := m.Path(node)
	if err != nil {
		return err
	}
	object := m.ObjectName(node.ID())
	if err := m.store.StageRemove(ctx, object, path, info); err != nil {
		return fmt.Errorf("stage removal %s: %w", node.ID(), err)
	}
	m.logger.Debug("staged removal", "object", object, "path", path, "reason", kind)
	return nil
}

// Commit turns every staged operation of object into one new revision,
// using the most recently staged metadata.
//
// With nothing staged, Commit succeeds without writing and returns the
// current head, or the zero Revision if the object does not exist yet.
func (m *Manager) Commit(ctx context.Context, object string) (model.Revision, error) {
	info, staged, err := m.store.StagedInfo(ctx, object)
	if err != nil {
		return model.Revision{}, fmt.Errorf("commit %s: %w", object, err)
	}
	if !staged {
		return m.head(ctx, object)
	}

	num, err := m.store.CommitStaged(ctx, object, info)
	if err != nil {
		return model.Revision{}, fmt.Errorf("commit %s: %w", object, err)
	}
	rev, err := model.RevisionFromInfo(object, num, info)
	if err != nil {
		return model.Revision{}, err
	}
	m.metrics.RevisionCommitted(rev.Reason)
	m.logger.Debug("committed revision", "object", object, "revision", num, "reason", rev.Reason)
	return rev, nil
}

func (m *Manager) head(ctx context.Context, object string) (model.Revision, error) {
	info, num, err := m.store.RevisionInfo(ctx, object, 0)
	if model.IsNotFound(err) {
		return model.Revision{}, nil
	}
	if err != nil {
		return model.Revision{}, fmt.Errorf("read head of %s: %w", object, err)
	}
	return model.RevisionFromInfo(object, num, info)
}

// Discard drops the staged changes of object. Safe when nothing is pending.
func (m *Manager) Discard(ctx context.Context, object string) error {
	if err := m.store.DiscardStaged(ctx, object); err != nil {
		return fmt.Errorf("discard %s: %w", object, err)
	}
	m.metrics.Discarded()
	m.logger.Debug("discarded staged changes", "object", object)
	return nil
}

// Retrieve reads node's document at revision rev, or at the head when rev
// is 0.
//
// Fails with NOT_FOUND when the object, revision or path is absent,
// UNINITIALIZED when the revision is an eager empty creation, and DELETED
// when the revision is a deletion that removed node's path.
func (m *Manager) Retrieve(ctx context.Context, node model.Node, rev int64) (model.Document, error) {
	path, err := m.Path(node)
	if err != nil {
		return model.Document{}, err
	}
	object := m.ObjectName(node.ID())

	info, num, err := m.store.RevisionInfo(ctx, object, rev)
	if err != nil {
		return model.Document{}, err
	}
	revision, err := model.RevisionFromInfo(object, num, info)
	if err != nil {
		return model.Document{}, err
	}
	if revision.Reason == model.ReasonInitialized {
		return model.Document{}, model.NewUninitializedError(object)
	}

	data, err := m.store.ReadFile(ctx, object, path, num)
	if model.IsNotFound(err) && revision.Reason == model.ReasonDeleted {
		return model.Document{}, model.NewDeletedError(object, path)
	}
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{Path: path, Revision: revision, Data: data}, nil
}

// History lists every revision of rootID's object, oldest first.
func (m *Manager) History(ctx context.Context, rootID string) ([]model.Revision, error) {
	object := m.prefix + rootID
	versions, err := m.store.Versions(ctx, object)
	if err != nil {
		return nil, err
	}
	revs := make([]model.Revision, 0, len(versions))
	for _, v := range versions {
		rev, err := model.RevisionFromInfo(object, v.Number, v.Info)
		if err != nil {
			return nil, fmt.Errorf("history of %s: revision %d: %w", object, v.Number, err)
		}
		revs = append(revs, rev)
	}
	return revs, nil
}

// Initialize eagerly creates rootID's object with an empty first revision.
// Reads of that revision fail with UNINITIALIZED until content is committed.
func (m *Manager) Initialize(ctx context.Context, rootID string) (model.Revision, error) {
	object := m.prefix + rootID
	info := model.NewVersionInfo(model.ReasonInitialized, m.clock.Now(), m.actor)
	if err := m.store.CreateEmpty(ctx, object, info); err != nil {
		return model.Revision{}, fmt.Errorf("initialize %s: %w", object, err)
	}
	m.metrics.RevisionCommitted(model.ReasonInitialized)
	m.logger.Debug("initialized object", "object", object)
	return model.RevisionFromInfo(object, 1, info)
}

// Purge permanently destroys rootID's history when policy allows it.
// Fails with PURGE_DENIED when the policy evaluates to false.
func (m *Manager) Purge(ctx context.Context, rootID string, policy PurgePolicy) error {
	object := m.prefix + rootID
	allowed, err := policy.MayPurge(purge.ClassSubject(m.prefix, rootID))
	if err != nil {
		return fmt.Errorf("purge %s: %w", object, err)
	}
	if !allowed {
		return model.NewPurgeDeniedError(object)
	}
	if err := m.store.PurgeObject(ctx, object); err != nil {
		return fmt.Errorf("purge %s: %w", object, err)
	}
	m.logger.Info("purged object history", "object", object)
	return nil
}

// Restore undoes the latest deletion of rootID's object by committing the
// inventory of the revision before it again, with reason Repaired.
//
// Fails with ILLEGAL_STATE when the head revision is not a deletion or when
// changes are already staged for the object.
func (m *Manager) Restore(ctx context.Context, rootID string) (model.Revision, error) {
	object := m.prefix + rootID

	head, err := m.head(ctx, object)
	if err != nil {
		return model.Revision{}, err
	}
	if head.Number == 0 {
		return model.Revision{}, model.NewNotFoundError(object, "", "object could not be found")
	}
	if head.Reason != model.ReasonDeleted {
		return model.Revision{}, model.NewIllegalStateError(fmt.Sprintf("head revision %d of %s is not a deletion", head.Number, object))
	}
	if head.Number == 1 {
		return model.Revision{}, model.NewIllegalStateError(fmt.Sprintf("%s has no revision before its deletion", object))
	}
	if _, staged, err := m.store.StagedInfo(ctx, object); err != nil {
		return model.Revision{}, err
	} else if staged {
		return model.Revision{}, model.NewIllegalStateError(fmt.Sprintf("%s has staged changes", object))
	}

	previous := head.Number - 1
	info := model.NewVersionInfo(model.ReasonRepaired, m.clock.Now(), m.actor)

	want, err := m.store.Files(ctx, object, previous)
	if err != nil {
		return model.Revision{}, err
	}
	have, err := m.store.Files(ctx, object, 0)
	if err != nil {
		return model.Revision{}, err
	}

	keep := make(map[string]bool, len(want))
	for _, path := range want {
		keep[path] = true
		data, err := m.store.ReadFile(ctx, object, path, previous)
		if err != nil {
			return model.Revision{}, m.abortRestore(ctx, object, err)
		}
		if err := m.store.StageWrite(ctx, object, path, data, info); err != nil {
			return model.Revision{}, m.abortRestore(ctx, object, err)
		}
	}
	for _, path := range have {
		if keep[path] {
			continue
		}
		if err := m.store.StageRemove(ctx, object, path, info); err != nil {
			return model.Revision{}, m.abortRestore(ctx, object, err)
		}
	}
	if len(want) == 0 && len(have) == 0 {
		return model.Revision{}, model.NewIllegalStateError(fmt.Sprintf("%s has no content to restore", object))
	}

	rev, err := m.Commit(ctx, object)
	if err != nil {
		return model.Revision{}, m.abortRestore(ctx, object, err)
	}
	m.logger.Info("restored object", "object", object, "from_revision", previous, "revision", rev.Number)
	return rev, nil
}

func (m *Manager) abortRestore(ctx context.Context, object string, cause error) error {
	if err := m.store.DiscardStaged(ctx, object); err != nil {
		m.logger.Warn("discard after failed restore", "object", object, "error", err)
	}
	return fmt.Errorf("restore %s: %w", object, cause)
}
