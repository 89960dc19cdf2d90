// Package provision binds HTTP sessions to workspace folders and populates new folders from the
// file store and the workspace's git remote.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/git"
	sessiondomain "github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/store"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/layout"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/registry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/repository"
)

// ErrProvisioning is returned when no usable folder could be bound to the session.
var ErrProvisioning = errors.New("provisioning failed")

// pullConcurrency bounds parallel file writes while populating a folder.
const pullConcurrency = 8

// Provisioner binds sessions to workspace folders.
type Provisioner struct {
	layout   layout.Layout
	registry *registry.Registry
	sessions store.Store
	repo     repository.Repository
	cloner   git.Cloner
	fs       afero.Fs
	emitter  telemetry.EventEmitter
	tasks    *Tasks

	newID func() string
	nowF  func() time.Time
}

// New returns a Provisioner. emitter may be nil.
func New(
	l layout.Layout,
	reg *registry.Registry,
	sessions store.Store,
	repo repository.Repository,
	cloner git.Cloner,
	fsys afero.Fs,
	emitter telemetry.EventEmitter,
) *Provisioner {
	return &Provisioner{
		layout:   l,
		registry: reg,
		sessions: sessions,
		repo:     repo,
		cloner:   cloner,
		fs:       fsys,
		emitter:  emitter,
		tasks:    NewTasks(),
		newID:    uuid.NewString,
		nowF:     time.Now,
	}
}

// Tasks returns the background population tracker.
func (p *Provisioner) Tasks() *Tasks {
	return p.tasks
}

// Provision binds the session to the identity's workspace.
//
// A session that already has a folder rejoins when the workspace name is registered: only its
// writable flag, touch time and workspace id change. Otherwise a new folder <root>/tmp/<id>/<name>
// is created, bound and registered, and populated in the background. Only folder creation can fail
// the call; population failures are logged.
func (p *Provisioner) Provision(ctx context.Context, sessionID string, id domain.Identity) (sessiondomain.Session, error) {
	sess, ok := p.sessions.Get(ctx, sessionID)
	if !ok {
		return sessiondomain.Session{}, fmt.Errorf("%w: session %s not found", ErrProvisioning, sessionID)
	}
	if err := layout.ValidateName(id.Name); err != nil {
		return sessiondomain.Session{}, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	if sess.Bound() && p.registry.Has(id.Name) {
		return p.rejoin(ctx, sessionID, id)
	}

	unlock := p.registry.LockName(id.Name)
	defer unlock()

	folder, err := p.layout.Folder(p.newID(), id.Name)
	if err != nil {
		return sessiondomain.Session{}, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}
	if err := p.fs.MkdirAll(folder, 0o755); err != nil {
		return sessiondomain.Session{}, fmt.Errorf("%w: create %s: %w", ErrProvisioning, folder, err)
	}

	now := p.nowF().UTC()
	bound, ok := p.sessions.Update(ctx, sessionID, func(s *sessiondomain.Session) {
		s.Folder = folder
		s.WorkspaceName = id.Name
		s.User = id.User
		s.Writable = id.Writable
		s.WorkspaceID = id.WorkspaceID
		s.LastTouch = now
	})
	if !ok {
		return sessiondomain.Session{}, fmt.Errorf("%w: session %s expired", ErrProvisioning, sessionID)
	}
	p.registry.Register(id)
	log.Printf("provision: bound session %s to %s", sessionID, folder)

	bg := context.WithoutCancel(ctx)
	p.tasks.Go(sessionID, func() { p.populate(bg, folder, id) })
	return bound, nil
}

func (p *Provisioner) rejoin(ctx context.Context, sessionID string, id domain.Identity) (sessiondomain.Session, error) {
	now := p.nowF().UTC()
	sess, ok := p.sessions.Update(ctx, sessionID, func(s *sessiondomain.Session) {
		s.Writable = id.Writable
		s.WorkspaceID = id.WorkspaceID
		s.LastTouch = now
	})
	if !ok {
		return sessiondomain.Session{}, fmt.Errorf("%w: session %s expired", ErrProvisioning, sessionID)
	}
	return sess, nil
}

// populate writes every stored file under folder, then clones the workspace remote if one is assigned.
func (p *Provisioner) populate(ctx context.Context, folder string, id domain.Identity) {
	err := p.pull(ctx, folder, id.Name)
	if err != nil {
		log.Printf("provision: pull %s: %v", id.Name, err)
	}
	p.emit(id, "provision.pull", err)

	remote, err := p.repo.GitRemote(ctx, id.Name)
	if err != nil {
		log.Printf("provision: git remote %s: %v", id.Name, err)
		return
	}
	if remote == "" {
		return
	}
	err = p.cloner.Clone(ctx, remote, folder)
	if err != nil {
		log.Printf("provision: clone %s into %s: %v", remote, folder, err)
	}
	p.emit(id, "provision.clone", err)
}

func (p *Provisioner) pull(ctx context.Context, folder, workspace string) error {
	files, err := p.repo.PullFiles(ctx, workspace)
	if err != nil {
		return err
	}
	g := new(errgroup.Group)
	g.SetLimit(pullConcurrency)
	for _, f := range files {
		target, ok := layout.Abs(folder, f.Path)
		if !ok {
			log.Printf("provision: skip stored path %q of %s", f.Path, workspace)
			continue
		}
		content := f.Content
		g.Go(func() error {
			if err := p.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return afero.WriteFile(p.fs, target, content, 0o644)
		})
	}
	return g.Wait()
}

func (p *Provisioner) emit(id domain.Identity, eventType string, err error) {
	event := telemetry.NewEvent(telemetry.SourceProvision, eventType, id.Name)
	event.User = id.User
	event.Organization = id.Organization
	telemetry.EmitAsync(p.emitter, event.Fail(err))
}
