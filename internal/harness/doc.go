// Package harness runs change scripts against a classification history.
//
// # Script Format
//
// Scripts are YAML files. Each transaction applies its steps to the live
// tree, notifying the session of every change, and then commits or rolls
// back. Transactions may instead run a history action (initialize,
// restore, purge) on one root.
//
//	name: colors_red
//	description: "Delete a category and keep its history"
//	commit_mode: node
//	transactions:
//	  - steps:
//	      - op: create
//	        root: colors
//	        labels: [{lang: en, text: Colors}]
//	      - op: create
//	        root: colors
//	        id: red
//	    end: commit
//	  - steps:
//	      - op: delete
//	        root: colors
//	        id: red
//	  - action: purge
//	    root: colors
//	    expect_error: PURGE_DENIED
//	assertions:
//	  - type: children
//	    root: colors
//	    children: []
//	  - type: retrieve_error
//	    root: colors
//	    id: red
//	    code: DELETED
//
// # Step Operations
//
//   - create: adds a classification (no id) or a category under parent
//     (default: the root) at index (default: append)
//   - update: replaces the labels of a node
//   - delete: removes a node and its subtree
//   - move: moves a category under parent at index
//   - repair: reports a node rebuilt, optionally with new labels
//
// # Assertion Types
//
//   - children: child ids of a node in a revision (0 = head)
//   - history: revision reasons of a root, oldest first
//   - document_contains: a retrieved document contains a substring
//   - retrieve_error: retrieving a node fails with an error code
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, a stepping clock and a fixed
// transaction id, so traces and history compare byte-for-byte against
// golden snapshots.
package harness
