package model

import (
	"fmt"
	"time"
)

// Reason is the closed set of revision reason codes.
type Reason byte

const (
	ReasonCreated     Reason = 'C'
	ReasonUpdated     Reason = 'U'
	ReasonDeleted     Reason = 'D'
	ReasonRepaired    Reason = 'R'
	ReasonInitialized Reason = 'I'
)

// InitializedMessage is the message the store writes on eager object creation.
const InitializedMessage = "Auto-generated empty object version."

// Message returns the revision message recorded in the object store.
func (r Reason) Message() string {
	switch r {
	case ReasonCreated:
		return "created"
	case ReasonUpdated:
		return "updated"
	case ReasonDeleted:
		return "deleted"
	case ReasonRepaired:
		return "repaired"
	case ReasonInitialized:
		return InitializedMessage
	}
	return ""
}

// String returns the human-readable reason name.
func (r Reason) String() string {
	switch r {
	case ReasonCreated:
		return "Created"
	case ReasonUpdated:
		return "Updated"
	case ReasonDeleted:
		return "Deleted"
	case ReasonRepaired:
		return "Repaired"
	case ReasonInitialized:
		return "Initialized"
	}
	return fmt.Sprintf("Reason(%d)", byte(r))
}

// ParseReason maps a stored revision message back to its reason.
// Unknown messages are a persistence error, never a default.
func ParseReason(message string) (Reason, error) {
	for _, r := range []Reason{ReasonCreated, ReasonUpdated, ReasonDeleted, ReasonRepaired, ReasonInitialized} {
		if r.Message() == message {
			return r, nil
		}
	}
	return 0, NewPersistenceError(fmt.Sprintf("cannot identify revision reason from message %q", message), nil)
}

// VersionInfo is the metadata attached to a staged or committed revision.
type VersionInfo struct {
	Message string    `json:"message"`
	Created time.Time `json:"created"`
	Actor   string    `json:"actor"`
}

// NewVersionInfo builds the metadata for reason r.
func NewVersionInfo(r Reason, created time.Time, actor string) VersionInfo {
	return VersionInfo{Message: r.Message(), Created: created.UTC(), Actor: actor}
}

// Revision is one immutable committed version of a versioned object.
type Revision struct {
	ObjectID string    `json:"object_id"`
	Number   int64     `json:"number"`
	Reason   Reason    `json:"-"`
	Created  time.Time `json:"created"`
	Actor    string    `json:"actor"`
}

// RevisionFromInfo resolves the reason of a committed VersionInfo.
func RevisionFromInfo(objectID string, number int64, info VersionInfo) (Revision, error) {
	reason, err := ParseReason(info.Message)
	if err != nil {
		return Revision{}, err
	}
	return Revision{
		ObjectID: objectID,
		Number:   number,
		Reason:   reason,
		Created:  info.Created,
		Actor:    info.Actor,
	}, nil
}

// Document is the content of one internal file at a revision.
type Document struct {
	Path     string
	Revision Revision
	Data     []byte
}
