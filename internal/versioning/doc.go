// Package versioning maps classification tree nodes onto versioned objects.
//
// Every classification root owns exactly one versioned object, named by a
// fixed prefix plus the root id. Each node of the tree lives at an
// internal file path derived from its ancestor chain:
//
//	colors            -> colors.xml
//	colors:red        -> colors/red.xml
//	colors:navy (under blue) -> colors/blue/navy.xml
//
// The Manager stages writes and removals against an ObjectStore, commits
// them as one revision per object, and reads historical content back with
// typed NOT_FOUND, DELETED and UNINITIALIZED failures.
package versioning
