// Package purge decides whether the history of a versioned object may be
// permanently destroyed.
//
// The decision is a last-writer-wins chain of optional configuration
// lookups, from the most general key to the most specific one, closed by
// post-match patterns. Each present lookup overwrites the running
// decision; absent lookups leave it untouched. The default is false.
//
// For a subject of type "class" in namespace "colors", with the default
// key prefix, the chain reads:
//
//	dropHistory                    bool
//	dropHistory.preMatch           pattern
//	dropHistory.class.preMatch     pattern
//	dropHistory.class              bool
//	dropHistory.colors             bool
//	dropHistory.class.colors       bool
//	dropHistory.postMatch          pattern
//	dropHistory.class.postMatch    pattern
//
// Patterns must match the whole subject id.
package purge
