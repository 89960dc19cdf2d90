// Package layout maps workspace folders under the ephemeral root to workspace names and
// workspace-relative file paths.
//
// Folders live at <root>/tmp/<id>/<name>. Relative paths are computed from the actual root
// and the <id>/<name> components of each path, so names of any length resolve the same way.
package layout

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// VCSDir is the version-control metadata directory that is never mirrored.
const VCSDir = ".git"

// ErrInvalidName is returned for workspace names that are not a single path segment.
var ErrInvalidName = errors.New("layout: invalid workspace name")

// Layout resolves paths below one ephemeral root.
type Layout struct {
	root string
}

// Location is a resolved path: the folder it belongs to and its workspace-relative path.
type Location struct {
	FolderID  string
	Workspace string
	Folder    string // absolute folder path <root>/tmp/<id>/<name>
	Rel       string // '/'-separated path relative to Folder; empty for the folder itself
}

// New returns a Layout for the given absolute root.
func New(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

// Root returns the ephemeral root.
func (l Layout) Root() string { return l.root }

// TmpDir returns <root>/tmp, the directory the watcher observes.
func (l Layout) TmpDir() string { return filepath.Join(l.root, "tmp") }

// Folder returns <root>/tmp/<id>/<name>.
func (l Layout) Folder(id, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ValidateName(id); err != nil {
		return "", err
	}
	return filepath.Join(l.TmpDir(), id, name), nil
}

// Resolve maps an absolute path inside a workspace folder to its Location.
// ok is false for paths outside <root>/tmp/<id>/<name>.
func (l Layout) Resolve(p string) (Location, bool) {
	rel, err := filepath.Rel(l.TmpDir(), filepath.Clean(p))
	if err != nil {
		return Location{}, false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return Location{}, false
	}
	parts := strings.SplitN(rel, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Location{}, false
	}
	loc := Location{
		FolderID:  parts[0],
		Workspace: parts[1],
		Folder:    filepath.Join(l.TmpDir(), parts[0], parts[1]),
	}
	if len(parts) == 3 {
		loc.Rel = parts[2]
	}
	return loc, true
}

// Abs returns the absolute path of a '/'-separated workspace-relative path inside folder.
// ok is false when rel would escape the folder.
func Abs(folder, rel string) (string, bool) {
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", false
	}
	return filepath.Join(folder, filepath.FromSlash(clean[1:])), true
}

// IsVCS reports whether a workspace-relative path is version-control metadata.
func IsVCS(rel string) bool {
	return rel == VCSDir || strings.HasPrefix(rel, VCSDir+"/")
}

// ValidateName rejects names that are empty, "." / "..", or contain a path separator.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}
