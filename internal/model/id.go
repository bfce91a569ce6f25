package model

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CategoryID identifies a node of a classification tree.
// Roots have ID == RootID.
type CategoryID struct {
	RootID string `json:"root_id"`
	ID     string `json:"id"`
}

// NewCategoryID builds a validated, NFC-normalized CategoryID.
// An empty id names the root itself.
func NewCategoryID(rootID, id string) (CategoryID, error) {
	rootID = norm.NFC.String(rootID)
	id = norm.NFC.String(id)
	if id == "" {
		id = rootID
	}
	if err := validatePart(rootID); err != nil {
		return CategoryID{}, fmt.Errorf("root id %q: %w", rootID, err)
	}
	if err := validatePart(id); err != nil {
		return CategoryID{}, fmt.Errorf("category id %q: %w", id, err)
	}
	return CategoryID{RootID: rootID, ID: id}, nil
}

// RootCategoryID returns the id of the root node of rootID.
func RootCategoryID(rootID string) (CategoryID, error) {
	return NewCategoryID(rootID, "")
}

// ParseCategoryID inverts CategoryID.String.
func ParseCategoryID(s string) (CategoryID, error) {
	root, id, _ := strings.Cut(s, ":")
	return NewCategoryID(root, id)
}

func validatePart(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	for _, r := range s {
		if r == '/' || r == ':' || unicode.IsSpace(r) {
			return fmt.Errorf("contains forbidden character %q", r)
		}
	}
	return nil
}

// IsRoot reports whether the id names a classification root.
func (c CategoryID) IsRoot() bool {
	return c.ID == c.RootID
}

// Root returns the id of the root of c's tree.
func (c CategoryID) Root() CategoryID {
	return CategoryID{RootID: c.RootID, ID: c.RootID}
}

// String returns "root" for roots and "root:id" otherwise.
func (c CategoryID) String() string {
	if c.IsRoot() {
		return c.RootID
	}
	return c.RootID + ":" + c.ID
}

// Node is a read-only view of a live tree node.
//
// Implementations must keep Parent reachable after the node is detached
// from its tree so paths of deleted nodes can still be derived.
type Node interface {
	ID() CategoryID
	Parent() Node // nil for roots
	Level() int
	IsRoot() bool
}
