// Package model provides the shared types of classver.
//
// This package contains the identifiers, lifecycle events, revision reasons,
// document snapshots and the error taxonomy used by every other package.
// model imports nothing internal, so it stays the foundational layer with
// no circular dependencies.
//
// Key design constraints:
//   - Category ids are NFC-normalized at construction
//   - Lifecycle events are a closed set; reason mapping is an exhaustive switch
//   - Revision reasons are first-class values, never compared as strings
package model
