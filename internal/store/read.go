package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/classver/internal/model"
)

// Version is one committed version of an object, as listed by Versions.
type Version struct {
	Number int64
	Info   model.VersionInfo
}

// StagedOp describes one pending operation, as listed by StagedOps.
type StagedOp struct {
	Seq    int64
	Remove bool
	Path   string
	Digest string
}

// ObjectExists reports whether objectID has at least one version.
func (s *Store) ObjectExists(ctx context.Context, objectID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE id = ?`, objectID).Scan(&count)
	if err != nil {
		return false, persistenceErr(objectID, "", "check object", err)
	}
	return count > 0, nil
}

// ListObjects returns every object id in lexical order.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListObjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM objects ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, persistenceErr("", "", "query objects", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistenceErr("", "", "scan object", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("", "", "iterate objects", err)
	}
	return ids, nil
}

// resolveVersion maps rev to a concrete version number; 0 means head.
// Returns NOT_FOUND for unknown objects and versions.
func (s *Store) resolveVersion(ctx context.Context, objectID string, rev int64) (int64, error) {
	var head int64
	err := s.db.QueryRowContext(ctx, `SELECT head FROM objects WHERE id = ?`, objectID).Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.NewNotFoundError(objectID, "", "object could not be found")
	}
	if err != nil {
		return 0, persistenceErr(objectID, "", "read head", err)
	}
	if rev == 0 {
		return head, nil
	}
	if rev < 0 || rev > head {
		return 0, model.NewNotFoundError(objectID, "", fmt.Sprintf("version %d could not be found", rev))
	}
	return rev, nil
}

// RevisionInfo returns the metadata of version rev (0 = head) and the
// resolved version number.
func (s *Store) RevisionInfo(ctx context.Context, objectID string, rev int64) (model.VersionInfo, int64, error) {
	num, err := s.resolveVersion(ctx, objectID, rev)
	if err != nil {
		return model.VersionInfo{}, 0, err
	}

	var message, created, actor string
	err = s.db.QueryRowContext(ctx, `
		SELECT message, created, actor FROM versions
		WHERE object_id = ? AND num = ?
	`, objectID, num).Scan(&message, &created, &actor)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VersionInfo{}, 0, model.NewNotFoundError(objectID, "", fmt.Sprintf("version %d could not be found", num))
	}
	if err != nil {
		return model.VersionInfo{}, 0, persistenceErr(objectID, "", "read version", err)
	}

	info, err := scanInfo(message, created, actor)
	if err != nil {
		return model.VersionInfo{}, 0, persistenceErr(objectID, "", "read version", err)
	}
	return info, num, nil
}

// ReadFile returns the content of path at version rev (0 = head).
func (s *Store) ReadFile(ctx context.Context, objectID, path string, rev int64) ([]byte, error) {
	num, err := s.resolveVersion(ctx, objectID, rev)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT c.data FROM version_files f
		JOIN contents c ON c.digest = f.digest
		WHERE f.object_id = ? AND f.num = ? AND f.path = ?
	`, objectID, num, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError(objectID, path, fmt.Sprintf("file not present in version %d", num))
	}
	if err != nil {
		return nil, persistenceErr(objectID, path, "read file", err)
	}
	return data, nil
}

// Files returns the inventory paths of version rev (0 = head), sorted.
func (s *Store) Files(ctx context.Context, objectID string, rev int64) ([]string, error) {
	num, err := s.resolveVersion(ctx, objectID, rev)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM version_files
		WHERE object_id = ? AND num = ?
		ORDER BY path COLLATE BINARY ASC
	`, objectID, num)
	if err != nil {
		return nil, persistenceErr(objectID, "", "query files", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, persistenceErr(objectID, "", "scan file", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(objectID, "", "iterate files", err)
	}
	return paths, nil
}

// Versions returns every committed version of objectID, oldest first.
func (s *Store) Versions(ctx context.Context, objectID string) ([]Version, error) {
	if _, err := s.resolveVersion(ctx, objectID, 0); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT num, message, created, actor FROM versions
		WHERE object_id = ?
		ORDER BY num ASC
	`, objectID)
	if err != nil {
		return nil, persistenceErr(objectID, "", "query versions", err)
	}
	defer rows.Close()

	versions := []Version{}
	for rows.Next() {
		var v Version
		var message, created, actor string
		if err := rows.Scan(&v.Number, &message, &created, &actor); err != nil {
			return nil, persistenceErr(objectID, "", "scan version", err)
		}
		if v.Info, err = scanInfo(message, created, actor); err != nil {
			return nil, persistenceErr(objectID, "", "scan version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(objectID, "", "iterate versions", err)
	}
	return versions, nil
}

// StagedInfo returns the pending metadata of objectID and whether any
// change is staged.
func (s *Store) StagedInfo(ctx context.Context, objectID string) (model.VersionInfo, bool, error) {
	var message, created, actor string
	err := s.db.QueryRowContext(ctx, `
		SELECT message, created, actor FROM staged_info WHERE object_id = ?
	`, objectID).Scan(&message, &created, &actor)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VersionInfo{}, false, nil
	}
	if err != nil {
		return model.VersionInfo{}, false, persistenceErr(objectID, "", "read staged info", err)
	}
	info, err := scanInfo(message, created, actor)
	if err != nil {
		return model.VersionInfo{}, false, persistenceErr(objectID, "", "read staged info", err)
	}
	return info, true, nil
}

// StagedOps lists the pending operations of objectID in arrival order.
func (s *Store) StagedOps(ctx context.Context, objectID string) ([]StagedOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, path, digest FROM staged_files
		WHERE object_id = ?
		ORDER BY seq ASC
	`, objectID)
	if err != nil {
		return nil, persistenceErr(objectID, "", "query staged ops", err)
	}
	defer rows.Close()

	ops := []StagedOp{}
	for rows.Next() {
		var op, path string
		var seq int64
		var digest sql.NullString
		if err := rows.Scan(&seq, &op, &path, &digest); err != nil {
			return nil, persistenceErr(objectID, "", "scan staged op", err)
		}
		ops = append(ops, StagedOp{Seq: seq, Remove: op == opRemove, Path: path, Digest: digest.String})
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(objectID, "", "iterate staged ops", err)
	}
	return ops, nil
}
