// Package classtree holds live classification trees in memory.
//
// A Forest is the read-only tree accessor the versioning layer consumes
// (Node, Root, Snapshot) plus the mutations the domain layer performs
// before it raises lifecycle events. Trees are seeded from CUE definition
// files (LoadFile, LoadDir) or rebuilt from a stored root document
// (Forest.AddSnapshot).
//
// Detached nodes keep their parent pointer, so the internal path of a
// deleted category can still be derived after removal.
package classtree
