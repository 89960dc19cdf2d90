package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

const (
	pullFilesSQL = `SELECT path, content FROM workspace_files WHERE workspace_name = $1 ORDER BY path`

	gitRemoteSQL = `SELECT remote_url FROM workspace_git_remotes WHERE workspace_name = $1`

	assignGitRemoteSQL = `INSERT INTO workspace_git_remotes (workspace_name, remote_url, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (workspace_name) DO UPDATE SET remote_url = EXCLUDED.remote_url, updated_at = now()`

	insertFileSQL = `INSERT INTO workspace_files (workspace_name, path, content, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (workspace_name, path) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`

	updateFileSQL = `UPDATE workspace_files SET content = $3, updated_at = now()
WHERE workspace_name = $1 AND path = $2`

	deleteByPrefixSQL = `DELETE FROM workspace_files
WHERE workspace_name = $1 AND left(path, length($2)) = $2`

	renameTargetSQL = `DELETE FROM workspace_files WHERE workspace_name = $1 AND path = $2`

	renameFileSQL = `UPDATE workspace_files SET path = $3, updated_at = now()
WHERE workspace_name = $1 AND path = $2`

	renamePrefixSQL = `UPDATE workspace_files SET path = $3 || substr(path, length($2) + 1), updated_at = now()
WHERE workspace_name = $1 AND (path = $2 OR left(path, length($2) + 1) = $2 || '/')`
)

// PostgresRepository stores workspace files in Postgres through a shared connection pool.
// Every operation acquires its connection for the duration of the call only.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a workspace repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// PullFiles returns every stored file of the workspace ordered by path.
func (r *PostgresRepository) PullFiles(ctx context.Context, workspace string) ([]domain.File, error) {
	rows, err := r.pool.Query(ctx, pullFilesSQL, workspace)
	if err != nil {
		return nil, err
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.File, error) {
		var f domain.File
		err := row.Scan(&f.Path, &f.Content)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("pull files for %s: %w", workspace, err)
	}
	return files, nil
}

// GitRemote returns the remote URL assigned to the workspace, or "" if none.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GitRemote(ctx context.Context, workspace string) (string, error) {
	var url string
	err := r.pool.QueryRow(ctx, gitRemoteSQL, workspace).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return url, nil
}

// AssignGitRemote records url as the workspace's git remote, replacing any earlier one.
func (r *PostgresRepository) AssignGitRemote(ctx context.Context, workspace, url string) error {
	_, err := r.pool.Exec(ctx, assignGitRemoteSQL, workspace, url)
	return err
}

// InsertFile stores content at path. The connection is released on every return path.
func (r *PostgresRepository) InsertFile(ctx context.Context, workspace, path string, content []byte) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, insertFileSQL, workspace, path, nonNil(content))
	return err
}

// UpdateFile replaces the content at path inside a transaction. Any failure rolls back.
// Returns ErrNotFound if no file is stored at path.
func (r *PostgresRepository) UpdateFile(ctx context.Context, workspace, path string, content []byte) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateFileSQL, workspace, path, nonNil(content))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeleteByPrefix removes every file whose path starts with prefix.
func (r *PostgresRepository) DeleteByPrefix(ctx context.Context, workspace, prefix string) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteByPrefixSQL, workspace, prefix)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RenameFile moves the file at oldPath to newPath, replacing any file already stored at newPath.
// Returns ErrNotFound if oldPath is not stored.
func (r *PostgresRepository) RenameFile(ctx context.Context, workspace, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, renameTargetSQL, workspace, newPath); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, renameFileSQL, workspace, oldPath, newPath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// RenamePrefix re-roots oldDir and everything below it at newDir.
func (r *PostgresRepository) RenamePrefix(ctx context.Context, workspace, oldDir, newDir string) (int64, error) {
	tag, err := r.pool.Exec(ctx, renamePrefixSQL, workspace, oldDir, newDir)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// nonNil keeps empty files from being stored as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
