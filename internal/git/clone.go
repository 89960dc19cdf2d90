package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Cloner populates a workspace folder from a remote repository.
type Cloner interface {
	Clone(ctx context.Context, remoteURL, dir string) error
}

// NewCloner returns a HelperCloner when helper is set and a CLICloner otherwise.
func NewCloner(helper string) Cloner {
	if helper != "" {
		return HelperCloner{Helper: helper}
	}
	return CLICloner{}
}

// HelperCloner delegates to an external executable invoked as `<Helper> <url> <dir>`.
type HelperCloner struct {
	Helper string
}

// Clone runs the helper.
func (c HelperCloner) Clone(ctx context.Context, remoteURL, dir string) error {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.Helper, remoteURL, dir)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("clone helper %s %s: %w (stderr: %s)", c.Helper, remoteURL, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CLICloner clones into an existing, possibly non-empty folder: it initializes a repository in
// place, points origin at the remote, and pulls the remote HEAD.
type CLICloner struct{}

// Clone initializes dir and pulls remoteURL into it.
func (CLICloner) Clone(ctx context.Context, remoteURL, dir string) error {
	if remoteURL == "" || strings.HasPrefix(remoteURL, "-") {
		return fmt.Errorf("git: invalid remote url %q", remoteURL)
	}
	repo := NewRepository(dir)
	if _, err := repo.Run(ctx, "init"); err != nil {
		return err
	}
	if _, err := repo.Run(ctx, "remote", "add", "origin", remoteURL); err != nil {
		if _, err := repo.Run(ctx, "remote", "set-url", "origin", remoteURL); err != nil {
			return err
		}
	}
	_, err := repo.Pull(ctx)
	return err
}
