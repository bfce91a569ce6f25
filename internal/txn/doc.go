// Package txn implements the session transaction lifecycle over a queue of
// node lifecycle events.
//
// A Session is owned by one logical request and is never shared. Begin
// returns a *Tx handle; the domain layer reports every node change through
// Tx.Notify, which queues the event and stages its documents right away.
// Commit deduplicates the queue by node, re-stages each surviving event's
// root document and commits its object. Rollback discards the staged
// changes of every queued event.
//
// States:
//
//	Idle --Begin--> Active --Commit ok--> Idle
//	                Active --Commit err--> Active (rollback-only)
//	                Active --Rollback--> Idle
//
// Begin while Active rolls the open transaction back first.
package txn
