// Package git runs git commands against workspace folders. Every command targets a
// specific directory through "git -C <dir>".
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// SuccessOutput replaces empty command output in responses to the editor.
const SuccessOutput = "Success!"

// ErrInvalidBranch is returned for branch names git would not accept or that look like options.
var ErrInvalidBranch = errors.New("git: invalid branch name")

// Repository is a git working tree at a specific directory.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns stdout. Stderr is captured
// separately and included in error messages on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Checkout switches the working tree to an existing branch.
func (r *Repository) Checkout(ctx context.Context, branch string) (string, error) {
	if err := r.validateBranch(ctx, branch); err != nil {
		return "", err
	}
	return r.Run(ctx, "checkout", branch, "--")
}

// CreateBranch creates branch at HEAD and switches to it.
func (r *Repository) CreateBranch(ctx context.Context, branch string) (string, error) {
	if err := r.validateBranch(ctx, branch); err != nil {
		return "", err
	}
	return r.Run(ctx, "checkout", "-b", branch)
}

// Pull fetches and integrates the current branch from origin.
func (r *Repository) Pull(ctx context.Context) (string, error) {
	return r.Run(ctx, "pull", "origin", "HEAD")
}

// Push stages every change, commits it with message when anything is staged, and pushes HEAD to origin.
func (r *Repository) Push(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		message = "Update workspace"
	}
	if _, err := r.Run(ctx, "add", "-A"); err != nil {
		return "", err
	}
	status, err := r.Run(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if strings.TrimSpace(status) != "" {
		commitOut, err := r.Run(ctx, "commit", "-m", message)
		if err != nil {
			return "", err
		}
		out.WriteString(commitOut)
	}
	pushOut, err := r.Run(ctx, "push", "origin", "HEAD")
	if err != nil {
		return "", err
	}
	out.WriteString(pushOut)
	return out.String(), nil
}

func (r *Repository) validateBranch(ctx context.Context, branch string) error {
	if branch == "" || strings.HasPrefix(branch, "-") {
		return ErrInvalidBranch
	}
	if _, err := r.Run(ctx, "check-ref-format", "--branch", branch); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBranch, err)
	}
	return nil
}

// NormalizeOutput returns SuccessOutput for empty output and the trimmed output otherwise.
func NormalizeOutput(out string) string {
	if s := strings.TrimSpace(out); s != "" {
		return s
	}
	return SuccessOutput
}
