// Package handler serves the workspace HTTP endpoints used by the editor front end.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/git"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/policy/engine"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/portal"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/server/interceptors"
	sessiondomain "github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/store"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/provision"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/registry"
)

// Decryptor turns a capability token into a workspace identity (e.g. *security.CapabilityCipher).
type Decryptor interface {
	Decrypt(iv, cipherText string) (domain.Identity, error)
}

// Provisioner binds a session to a workspace folder (e.g. *provision.Provisioner).
type Provisioner interface {
	Provision(ctx context.Context, sessionID string, id domain.Identity) (sessiondomain.Session, error)
}

// Portal is the external portal's file API (e.g. *portal.Client).
type Portal interface {
	ListFiles(ctx context.Context, workspaceID int64) (portal.FileList, error)
	Download(ctx context.Context, fsys afero.Fs, folder, fileID, filename string) (string, error)
}

// Scaffolder copies a template tree into a folder (e.g. *scaffold.Scaffolder).
type Scaffolder interface {
	Apply(kind, folder string) (int, error)
}

// RemoteStore records a workspace's git remote (e.g. repository.Repository).
type RemoteStore interface {
	AssignGitRemote(ctx context.Context, workspace, url string) error
}

// GitRepo runs git commands in one folder (e.g. *git.Repository).
type GitRepo interface {
	Checkout(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, branch string) (string, error)
	Pull(ctx context.Context) (string, error)
	Push(ctx context.Context, message string) (string, error)
}

// Deps holds the collaborators of the workspace endpoints.
type Deps struct {
	Sessions    *interceptors.Sessions
	Store       store.Store
	Decryptor   Decryptor
	Provisioner Provisioner
	Registry    *registry.Registry
	// Policy gates actions by the session's permissions. If nil, every action is allowed.
	Policy   engine.Evaluator
	Portal   Portal
	Scaffold Scaffolder
	Cloner   git.Cloner
	Remotes  RemoteStore
	// NewGit opens the repository in a workspace folder. Defaults to git.NewRepository.
	NewGit func(dir string) GitRepo
	Fs     afero.Fs
	// PortalURL is where unauthenticated clients are redirected.
	PortalURL string
	// GitHost prefixes "<username>/<repository>" to build clone URLs.
	GitHost string
	Emitter telemetry.EventEmitter
}

// Handler serves the workspace endpoints.
type Handler struct {
	Deps
	nowF func() time.Time
}

// NewHandler returns a Handler over deps.
func NewHandler(deps Deps) *Handler {
	if deps.NewGit == nil {
		deps.NewGit = func(dir string) GitRepo { return git.NewRepository(dir) }
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	return &Handler{Deps: deps, nowF: time.Now}
}

// Register mounts the workspace routes on r. r must already run the session Load middleware.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/createTempWorkspace", h.CreateTempWorkspace)
	r.GET("/ping", interceptors.RequireSession(), h.Ping)

	ws := r.Group("/", interceptors.RequireBound())
	{
		ws.GET("/getWorkspace", h.GetWorkspace)
	}
	{
		ws.GET("/setupRSL", h.SetupRSL)
		ws.GET("/setupASL", h.SetupASL)
		ws.GET("/setupCustom", h.SetupCustom)
		ws.GET("/setupCustomAccepted", h.SetupCustomAccepted)
	}
	{
		ws.GET("/cloneRepo", h.CloneRepo)
		ws.GET("/gitCheckout", h.GitCheckout)
		ws.GET("/gitBranch", h.GitBranch)
		ws.GET("/gitPull", h.GitPull)
		ws.GET("/gitPush", h.GitPush)
	}
}

// GetWorkspace returns the folder bound to the session.
func (h *Handler) GetWorkspace(c *gin.Context) {
	sess, _ := interceptors.GetSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"foldername": sess.Folder,
		"readonly":   !sess.Writable,
		"username":   sess.User,
	})
}

// CreateTempWorkspace decrypts the iv/t capability token, provisions its workspace for the
// session and redirects to the editor. Any token problem redirects to the portal instead.
func (h *Handler) CreateTempWorkspace(c *gin.Context) {
	iv, t := c.Query("iv"), c.Query("t")
	if iv == "" || t == "" {
		c.Redirect(http.StatusMovedPermanently, h.PortalURL)
		return
	}
	id, err := h.Decryptor.Decrypt(iv, t)
	if err != nil {
		log.Printf("workspace: rejected capability token: %v", err)
		c.Redirect(http.StatusMovedPermanently, h.PortalURL)
		return
	}
	sess, err := h.Sessions.Ensure(c)
	if err != nil {
		log.Printf("workspace: session: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if _, err := h.Provisioner.Provision(c.Request.Context(), sess.ID, id); err != nil {
		if errors.Is(err, provision.ErrProvisioning) {
			log.Printf("workspace: provision %s: %v", id.Name, err)
		} else {
			log.Printf("workspace: provision %s: unexpected error: %v", id.Name, err)
		}
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Redirect(http.StatusMovedPermanently, "/")
}

// Ping refreshes the session's last-touch time.
func (h *Handler) Ping(c *gin.Context) {
	sess, _ := interceptors.GetSession(c.Request.Context())
	now := h.nowF().UTC()
	if _, ok := h.Store.Update(c.Request.Context(), sess.ID, func(s *sessiondomain.Session) {
		s.LastTouch = now
	}); !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Status(http.StatusOK)
}

// authorize evaluates the policy for action and writes 403/500 when the caller may not proceed.
func (h *Handler) authorize(c *gin.Context, action string) (sessiondomain.Session, bool) {
	sess, _ := interceptors.GetSession(c.Request.Context())
	if h.Policy == nil {
		return sess, true
	}
	req := engine.Request{
		Action:    action,
		Workspace: sess.WorkspaceName,
		User:      sess.User,
		Writable:  sess.Writable,
	}
	if h.Registry != nil {
		if entry, ok := h.Registry.Lookup(sess.WorkspaceName); ok {
			req.Organization = entry.Identity.Organization
		}
	}
	allowed, err := h.Policy.Allow(c.Request.Context(), req)
	if err != nil {
		log.Printf("workspace: policy %s: %v", action, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "policy evaluation failed"})
		return sess, false
	}
	if !allowed {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "workspace is read-only"})
		return sess, false
	}
	return sess, true
}

func (h *Handler) emit(sess sessiondomain.Session, eventType string, err error) {
	event := telemetry.NewEvent(telemetry.SourceGit, eventType, sess.WorkspaceName)
	event.User = sess.User
	if h.Registry != nil {
		if entry, ok := h.Registry.Lookup(sess.WorkspaceName); ok {
			event.Organization = entry.Identity.Organization
		}
	}
	telemetry.EmitAsync(h.Emitter, event.Fail(err))
}
