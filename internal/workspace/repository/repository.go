package repository

import (
	"context"
	"errors"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

// ErrNotFound is returned when an update or rename matches no stored file.
var ErrNotFound = errors.New("workspace file not found")

// Repository defines persistence for workspace files and git remotes.
// Paths are workspace-relative with '/' separators.
type Repository interface {
	// PullFiles returns every stored file of the workspace.
	PullFiles(ctx context.Context, workspace string) ([]domain.File, error)
	// GitRemote returns the stored remote URL, or "" if none is assigned.
	GitRemote(ctx context.Context, workspace string) (string, error)
	AssignGitRemote(ctx context.Context, workspace, url string) error
	// InsertFile stores a new file. Inserting an existing path replaces its content.
	InsertFile(ctx context.Context, workspace, path string, content []byte) error
	// UpdateFile replaces the content of an existing file in its own transaction.
	UpdateFile(ctx context.Context, workspace, path string, content []byte) error
	// DeleteByPrefix removes every file whose path starts with prefix and returns how many were removed.
	DeleteByPrefix(ctx context.Context, workspace, prefix string) (int64, error)
	// RenameFile moves one file to newPath, keeping its content and replacing any file stored at newPath.
	RenameFile(ctx context.Context, workspace, oldPath, newPath string) error
	// RenamePrefix moves a directory: oldDir itself and every path below oldDir/ are re-rooted at newDir.
	RenamePrefix(ctx context.Context, workspace, oldDir, newDir string) (int64, error)
}
