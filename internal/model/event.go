package model

import "fmt"

// EventKind distinguishes lifecycle notification kinds.
type EventKind int

const (
	KindCreated EventKind = iota + 1
	KindUpdated
	KindDeleted
	KindRepaired
	KindMoved
)

// String returns the lowercase kind name used in logs and change scripts.
func (k EventKind) String() string {
	switch k {
	case KindCreated:
		return "create"
	case KindUpdated:
		return "update"
	case KindDeleted:
		return "delete"
	case KindRepaired:
		return "repair"
	case KindMoved:
		return "move"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ReasonFor maps a notification kind to its revision reason.
// A kind outside the closed set is a persistence error.
func ReasonFor(k EventKind) (Reason, error) {
	switch k {
	case KindCreated:
		return ReasonCreated, nil
	case KindUpdated, KindMoved:
		return ReasonUpdated, nil
	case KindDeleted:
		return ReasonDeleted, nil
	case KindRepaired:
		return ReasonRepaired, nil
	}
	return 0, NewPersistenceError(fmt.Sprintf("no revision reason for event kind %s", k), nil)
}

// Event is a lifecycle notification for one tree node.
// The set of implementations is closed to this package.
type Event interface {
	Kind() EventKind
	Node() Node
	isEvent()
}

// Created reports a new node.
type Created struct{ Target Node }

// Updated reports changed node content.
type Updated struct{ Target Node }

// Deleted reports a removed node. Target keeps its former parent chain.
type Deleted struct{ Target Node }

// Repaired reports a node rebuilt by a repair run.
type Repaired struct{ Target Node }

// Moved reports Target moved from OldParent to position Index under NewParent.
type Moved struct {
	Target    Node
	OldParent Node
	NewParent Node
	Index     int
}

func (e Created) Kind() EventKind  { return KindCreated }
func (e Updated) Kind() EventKind  { return KindUpdated }
func (e Deleted) Kind() EventKind  { return KindDeleted }
func (e Repaired) Kind() EventKind { return KindRepaired }
func (e Moved) Kind() EventKind    { return KindMoved }

func (e Created) Node() Node  { return e.Target }
func (e Updated) Node() Node  { return e.Target }
func (e Deleted) Node() Node  { return e.Target }
func (e Repaired) Node() Node { return e.Target }
func (e Moved) Node() Node    { return e.Target }

func (Created) isEvent()  {}
func (Updated) isEvent()  {}
func (Deleted) isEvent()  {}
func (Repaired) isEvent() {}
func (Moved) isEvent()    {}
