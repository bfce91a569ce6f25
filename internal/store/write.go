package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/classver/internal/model"
)

const (
	opWrite  = "write"
	opRemove = "remove"
)

// StageWrite records a pending write of data at path inside objectID.
// Operations are applied in arrival order on commit; the pending metadata
// is replaced by info (last writer wins).
func (s *Store) StageWrite(ctx context.Context, objectID, path string, data []byte, info model.VersionInfo) error {
	digest := model.ContentDigest(data)
	return s.stage(ctx, objectID, opWrite, path, digest, data, info)
}

// StageRemove records a pending removal of path inside objectID.
func (s *Store) StageRemove(ctx context.Context, objectID, path string, info model.VersionInfo) error {
	return s.stage(ctx, objectID, opRemove, path, "", nil, info)
}

func (s *Store) stage(ctx context.Context, objectID, op, path, digest string, data []byte, info model.VersionInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr(objectID, path, "stage: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	var digestArg any
	if op == opWrite {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contents (digest, data) VALUES (?, ?)
			ON CONFLICT(digest) DO NOTHING
		`, digest, data); err != nil {
			return persistenceErr(objectID, path, "stage: write content", err)
		}
		digestArg = digest
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM staged_files WHERE object_id = ?
	`, objectID).Scan(&seq); err != nil {
		return persistenceErr(objectID, path, "stage: next seq", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staged_files (object_id, seq, op, path, digest)
		VALUES (?, ?, ?, ?, ?)
	`, objectID, seq, op, path, digestArg); err != nil {
		return persistenceErr(objectID, path, "stage: insert op", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staged_info (object_id, message, created, actor)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			message = excluded.message,
			created = excluded.created,
			actor = excluded.actor
	`, objectID, info.Message, formatTime(info.Created), info.Actor); err != nil {
		return persistenceErr(objectID, path, "stage: write info", err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr(objectID, path, "stage: commit", err)
	}
	return nil
}

// pendingOp is one staged operation, read back in seq order inside a commit.
type pendingOp struct {
	Seq    int64
	Op     string
	Path   string
	Digest sql.NullString
}

// CommitStaged materializes every staged operation of objectID as one new
// version carrying info. Either all operations become visible together or
// none do. Returns the new version number.
//
// Committing an object with nothing staged is an error; callers check
// StagedInfo first.
func (s *Store) CommitStaged(ctx context.Context, objectID string, info model.VersionInfo) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistenceErr(objectID, "", "commit: begin tx", err)
	}
	defer tx.Rollback()

	ops, err := readStagedOps(ctx, tx, objectID)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, model.NewPersistenceError(fmt.Sprintf("commit: no staged changes for %s", objectID), nil)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO objects (id, head) VALUES (?, 0)
		ON CONFLICT(id) DO NOTHING
	`, objectID); err != nil {
		return 0, persistenceErr(objectID, "", "commit: ensure object", err)
	}

	var head int64
	if err := tx.QueryRowContext(ctx, `SELECT head FROM objects WHERE id = ?`, objectID).Scan(&head); err != nil {
		return 0, persistenceErr(objectID, "", "commit: read head", err)
	}
	next := head + 1

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (object_id, num, message, created, actor)
		VALUES (?, ?, ?, ?, ?)
	`, objectID, next, info.Message, formatTime(info.Created), info.Actor); err != nil {
		return 0, persistenceErr(objectID, "", "commit: insert version", err)
	}

	// Start from the head inventory, then replay staged ops in order.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO version_files (object_id, num, path, digest)
		SELECT object_id, ?, path, digest FROM version_files
		WHERE object_id = ? AND num = ?
	`, next, objectID, head); err != nil {
		return 0, persistenceErr(objectID, "", "commit: copy inventory", err)
	}

	for _, op := range ops {
		switch op.Op {
		case opWrite:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO version_files (object_id, num, path, digest)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(object_id, num, path) DO UPDATE SET digest = excluded.digest
			`, objectID, next, op.Path, op.Digest.String)
		case opRemove:
			_, err = tx.ExecContext(ctx, `
				DELETE FROM version_files WHERE object_id = ? AND num = ? AND path = ?
			`, objectID, next, op.Path)
		default:
			err = fmt.Errorf("unknown staged op %q", op.Op)
		}
		if err != nil {
			return 0, persistenceErr(objectID, op.Path, fmt.Sprintf("commit: apply op %d", op.Seq), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE objects SET head = ? WHERE id = ?`, next, objectID); err != nil {
		return 0, persistenceErr(objectID, "", "commit: advance head", err)
	}
	if err := clearStaged(ctx, tx, objectID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, persistenceErr(objectID, "", "commit", err)
	}
	return next, nil
}

func readStagedOps(ctx context.Context, tx *sql.Tx, objectID string) ([]pendingOp, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT seq, op, path, digest FROM staged_files
		WHERE object_id = ?
		ORDER BY seq ASC
	`, objectID)
	if err != nil {
		return nil, persistenceErr(objectID, "", "read staged ops", err)
	}
	defer rows.Close()

	var ops []pendingOp
	for rows.Next() {
		var op pendingOp
		if err := rows.Scan(&op.Seq, &op.Op, &op.Path, &op.Digest); err != nil {
			return nil, persistenceErr(objectID, "", "scan staged op", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(objectID, "", "iterate staged ops", err)
	}
	return ops, nil
}

func clearStaged(ctx context.Context, tx *sql.Tx, objectID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM staged_files WHERE object_id = ?`, objectID); err != nil {
		return persistenceErr(objectID, "", "clear staged files", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM staged_info WHERE object_id = ?`, objectID); err != nil {
		return persistenceErr(objectID, "", "clear staged info", err)
	}
	return nil
}

// DiscardStaged drops all pending operations of objectID without creating
// a version. Safe to call when nothing is staged.
func (s *Store) DiscardStaged(ctx context.Context, objectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr(objectID, "", "discard: begin tx", err)
	}
	defer tx.Rollback()

	if err := clearStaged(ctx, tx, objectID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistenceErr(objectID, "", "discard: commit", err)
	}
	return nil
}

// CreateEmpty eagerly creates objectID with a first version that holds
// no files. Fails if the object already exists.
func (s *Store) CreateEmpty(ctx context.Context, objectID string, info model.VersionInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr(objectID, "", "create: begin tx", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO objects (id, head) VALUES (?, 1)
		ON CONFLICT(id) DO NOTHING
	`, objectID)
	if err != nil {
		return persistenceErr(objectID, "", "create: insert object", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return persistenceErr(objectID, "", "create: rows affected", err)
	}
	if n == 0 {
		return model.NewPersistenceError(fmt.Sprintf("object %s already exists", objectID), nil)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (object_id, num, message, created, actor)
		VALUES (?, 1, ?, ?, ?)
	`, objectID, info.Message, formatTime(info.Created), info.Actor); err != nil {
		return persistenceErr(objectID, "", "create: insert version", err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr(objectID, "", "create: commit", err)
	}
	return nil
}

// PurgeObject permanently destroys every version and staged change of
// objectID, then drops contents no other version or staged op references.
// Returns a NOT_FOUND error if the object does not exist.
func (s *Store) PurgeObject(ctx context.Context, objectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr(objectID, "", "purge: begin tx", err)
	}
	defer tx.Rollback()

	if err := clearStaged(ctx, tx, objectID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, objectID)
	if err != nil {
		return persistenceErr(objectID, "", "purge: delete object", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return persistenceErr(objectID, "", "purge: rows affected", err)
	}
	if n == 0 {
		return model.NewNotFoundError(objectID, "", "object could not be found")
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM contents
		WHERE digest NOT IN (SELECT digest FROM version_files)
		AND digest NOT IN (SELECT digest FROM staged_files WHERE digest IS NOT NULL)
	`); err != nil {
		return persistenceErr(objectID, "", "purge: collect contents", err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr(objectID, "", "purge: commit", err)
	}
	return nil
}

func persistenceErr(objectID, path, op string, err error) error {
	e := model.NewPersistenceError(op, err)
	e.Object = objectID
	e.Path = path
	return e
}
