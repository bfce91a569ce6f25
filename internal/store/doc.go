// Package store provides SQLite-backed durable storage for versioned objects.
//
// A versioned object is an identity whose history is an append-only
// sequence of immutable versions. Each version carries metadata (message,
// created, actor) and a complete inventory of the object's internal files.
//
// The store implements:
//   - Objects: one row per identity, tracking the head version number
//   - Versions: immutable, numbered 1..head per object
//   - Version files: full path -> digest inventory of every version
//   - Contents: content-addressed file bodies, shared across versions
//   - Staged files / staged info: pending writes and removals plus the
//     metadata of the next version, applied in arrival order on commit
//
// # Critical Patterns
//
// Atomic commit: all staged operations of one object become visible in
// a single SQL transaction, or none do.
//
// Append-only history: versions are never updated. The only destructive
// operation is PurgeObject, which callers gate behind a purge policy.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Content digests are computed by model.ContentDigest.
package store
