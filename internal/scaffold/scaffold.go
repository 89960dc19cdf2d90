// Package scaffold copies language template trees into workspace folders.
package scaffold

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Template kinds available under the template directory.
const (
	RSL = "rsl"
	ASL = "asl"
)

// ErrUnknownTemplate is returned for template kinds other than RSL and ASL.
var ErrUnknownTemplate = errors.New("scaffold: unknown template")

// Scaffolder copies templates from a directory holding one subdirectory per kind.
type Scaffolder struct {
	fs  afero.Fs
	dir string
}

// New returns a Scaffolder reading templates from dir.
func New(fsys afero.Fs, dir string) *Scaffolder {
	return &Scaffolder{fs: fsys, dir: dir}
}

// Apply copies the template tree of kind into folder, overwriting files of the same name.
// Returns the number of files copied.
func (s *Scaffolder) Apply(kind, folder string) (int, error) {
	if kind != RSL && kind != ASL {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTemplate, kind)
	}
	return Copy(s.fs, filepath.Join(s.dir, kind), folder)
}

// Copy recreates the tree rooted at src below dst.
func Copy(fsys afero.Fs, src, dst string) (int, error) {
	n := 0
	err := afero.Walk(fsys, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fsys.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := copyFile(fsys, p, target, info.Mode().Perm()); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func copyFile(fsys afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
