package domain

import "path/filepath"

// ChangeKind tags a ChangeEvent.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Modified
	Deleted
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is a single filesystem change produced by the watcher. Dir/File name the affected
// entry; for Renamed they name the new location and OldDir/OldFile the previous one.
type ChangeEvent struct {
	Kind    ChangeKind
	Dir     string
	File    string
	OldDir  string
	OldFile string
}

// Path returns the absolute path of the affected entry (the new path for Renamed).
func (e ChangeEvent) Path() string {
	return join(e.Dir, e.File)
}

// OldPath returns the previous absolute path of a Renamed entry; empty for other kinds.
func (e ChangeEvent) OldPath() string {
	if e.Kind != Renamed {
		return ""
	}
	return join(e.OldDir, e.OldFile)
}

func join(dir, file string) string {
	if file == "" {
		return dir
	}
	return filepath.Join(dir, file)
}
