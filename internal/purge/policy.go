package purge

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultKeyPrefix is the configuration key prefix of the chain.
const DefaultKeyPrefix = "dropHistory"

// Lookup is the configuration consulted by a Policy.
// The second result reports whether the key is present.
type Lookup interface {
	Bool(key string) (bool, bool)
	String(key string) (string, bool)
}

// Subject identifies the history a purge would destroy.
type Subject struct {
	// Type is the object kind, e.g. "class".
	Type string
	// Namespace groups subjects of one type; for classifications it is
	// the root id.
	Namespace string
	// ID is the subject identity matched by patterns.
	ID string
}

// ClassSubject returns the subject of the classification rootID stored
// under objectPrefix. The type is the prefix without its separator, so
// "class:" yields "class".
func ClassSubject(objectPrefix, rootID string) Subject {
	return Subject{
		Type:      strings.ReplaceAll(objectPrefix, ":", ""),
		Namespace: rootID,
		ID:        rootID,
	}
}

// Policy evaluates the purge chain against a Lookup.
type Policy struct {
	lookup Lookup
	prefix string
}

// NewPolicy returns a Policy reading keys under keyPrefix.
// An empty keyPrefix uses DefaultKeyPrefix.
func NewPolicy(lookup Lookup, keyPrefix string) *Policy {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Policy{lookup: lookup, prefix: keyPrefix}
}

// MayPurge reports whether the history of s may be destroyed.
// Returns an error if a configured pattern does not compile.
func (p *Policy) MayPurge(s Subject) (bool, error) {
	k := func(parts ...string) string {
		return strings.Join(append([]string{p.prefix}, parts...), ".")
	}

	decision := false
	steps := []struct {
		key     string
		pattern bool
	}{
		{key: p.prefix},
		{key: k("preMatch"), pattern: true},
		{key: k(s.Type, "preMatch"), pattern: true},
		{key: k(s.Type)},
		{key: k(s.Namespace)},
		{key: k(s.Type, s.ID)},
		{key: k("postMatch"), pattern: true},
		{key: k(s.Type, "postMatch"), pattern: true},
	}

	for _, step := range steps {
		if step.pattern {
			pattern, ok := p.lookup.String(step.key)
			if !ok {
				continue
			}
			matched, err := matchWhole(pattern, s.ID)
			if err != nil {
				return false, fmt.Errorf("purge policy: key %s: %w", step.key, err)
			}
			decision = matched
			continue
		}
		if v, ok := p.lookup.Bool(step.key); ok {
			decision = v
		}
	}
	return decision, nil
}

// matchWhole reports whether pattern matches all of s.
func matchWhole(pattern, s string) (bool, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}
