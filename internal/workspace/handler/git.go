package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/git"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/policy/engine"
)

var errBadPayload = errors.New("malformed data parameter")

// repoPart matches one GitHub-style owner or repository name.
var repoPart = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

type clonePayload struct {
	Username   string `json:"username"`
	Repository string `json:"repository"`
}

type branchPayload struct {
	Branch string `json:"branch"`
}

type pushPayload struct {
	Message string `json:"message"`
}

// decodeData decodes the base64 JSON "data" query parameter into v. URL-safe and standard
// alphabets are accepted, with or without padding. A missing parameter leaves v untouched.
func decodeData(c *gin.Context, v any) error {
	raw := c.Query("data")
	if raw == "" {
		return nil
	}
	raw = strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(raw, "="))
	b, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

// CloneRepo clones <GitHost>/<username>/<repository> into the bound folder and records it as the
// workspace's remote.
func (h *Handler) CloneRepo(c *gin.Context) {
	var p clonePayload
	if err := decodeData(c, &p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !repoPart.MatchString(p.Username) || !repoPart.MatchString(p.Repository) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid username or repository"})
		return
	}
	sess, ok := h.authorize(c, engine.ActionCloneRepo)
	if !ok {
		return
	}
	url := strings.TrimSuffix(h.GitHost, "/") + "/" + p.Username + "/" + p.Repository
	ctx := c.Request.Context()
	err := h.Cloner.Clone(ctx, url, sess.Folder)
	if err == nil {
		err = h.Remotes.AssignGitRemote(ctx, sess.WorkspaceName, url)
	}
	h.emit(sess, "git.clone", err)
	if err != nil {
		log.Printf("workspace: clone %s into %s: %v", url, sess.WorkspaceName, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// GitCheckout switches the bound folder to an existing branch.
func (h *Handler) GitCheckout(c *gin.Context) {
	var p branchPayload
	h.runGit(c, engine.ActionGitCheckout, &p, func(ctx context.Context, repo GitRepo) (string, error) {
		return repo.Checkout(ctx, p.Branch)
	})
}

// GitBranch creates a branch and switches to it.
func (h *Handler) GitBranch(c *gin.Context) {
	var p branchPayload
	h.runGit(c, engine.ActionGitBranch, &p, func(ctx context.Context, repo GitRepo) (string, error) {
		return repo.CreateBranch(ctx, p.Branch)
	})
}

// GitPull pulls the current branch from origin.
func (h *Handler) GitPull(c *gin.Context) {
	var p struct{}
	h.runGit(c, engine.ActionGitPull, &p, func(ctx context.Context, repo GitRepo) (string, error) {
		return repo.Pull(ctx)
	})
}

// GitPush commits every change in the folder and pushes it to origin.
func (h *Handler) GitPush(c *gin.Context) {
	var p pushPayload
	h.runGit(c, engine.ActionGitPush, &p, func(ctx context.Context, repo GitRepo) (string, error) {
		return repo.Push(ctx, p.Message)
	})
}

// runGit decodes the payload into p, checks the policy, runs op against the bound folder and
// responds {"output": ...}.
func (h *Handler) runGit(c *gin.Context, action string, p any, op func(context.Context, GitRepo) (string, error)) {
	if err := decodeData(c, p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, ok := h.authorize(c, action)
	if !ok {
		return
	}
	out, err := op(c.Request.Context(), h.NewGit(sess.Folder))
	h.emit(sess, "git."+action, err)
	if err != nil {
		if errors.Is(err, git.ErrInvalidBranch) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("workspace: %s in %s: %v", action, sess.WorkspaceName, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": git.NormalizeOutput(out)})
}
